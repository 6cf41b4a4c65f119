package jwtverifier

import (
	"context"
	"errors"
	"testing"

	"github.com/m-lab/authgate/auth"
)

func staticVerifier(cl *auth.Claims, err error, calls *int) auth.Verifier {
	return auth.VerifierFunc(func(ctx context.Context, tok string) (*auth.Claims, error) {
		*calls++
		return cl, err
	})
}

func TestChain_Verify(t *testing.T) {
	errFirst := errors.New("first failed")
	errSecond := errors.New("second failed")
	ok := &auth.Claims{Subject: "u1"}

	tests := []struct {
		name      string
		results   []error
		claims    []*auth.Claims
		wantSub   string
		wantErrs  []error
		wantCalls []int
	}{
		{
			name:      "first-succeeds",
			results:   []error{nil, nil},
			claims:    []*auth.Claims{ok, {Subject: "u2"}},
			wantSub:   "u1",
			wantCalls: []int{1, 0},
		},
		{
			name:      "falls-through",
			results:   []error{errFirst, nil},
			claims:    []*auth.Claims{nil, ok},
			wantSub:   "u1",
			wantCalls: []int{1, 1},
		},
		{
			name:      "nil-claims-falls-through",
			results:   []error{nil, nil},
			claims:    []*auth.Claims{nil, ok},
			wantSub:   "u1",
			wantCalls: []int{1, 1},
		},
		{
			name:      "all-fail",
			results:   []error{errFirst, errSecond},
			claims:    []*auth.Claims{nil, nil},
			wantErrs:  []error{errFirst, errSecond},
			wantCalls: []int{1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := make([]int, len(tt.results))
			var c Chain
			for i := range tt.results {
				c = append(c, staticVerifier(tt.claims[i], tt.results[i], &calls[i]))
			}
			cl, err := c.Verify(context.Background(), "tok")
			for i := range calls {
				if calls[i] != tt.wantCalls[i] {
					t.Errorf("verifier %d calls = %d, want %d", i, calls[i], tt.wantCalls[i])
				}
			}
			if tt.wantErrs != nil {
				for _, want := range tt.wantErrs {
					if !errors.Is(err, want) {
						t.Errorf("Verify() error = %v, want it to include %v", err, want)
					}
				}
				return
			}
			if err != nil || cl.Subject != tt.wantSub {
				t.Errorf("Verify() = %v, %v; want subject %q", cl, err, tt.wantSub)
			}
		})
	}
}

func TestChain_Empty(t *testing.T) {
	if _, err := (Chain{}).Verify(context.Background(), "tok"); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}

func TestChain_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := Chain{
		auth.VerifierFunc(func(ctx context.Context, tok string) (*auth.Claims, error) {
			cancel()
			return nil, ctx.Err()
		}),
		staticVerifier(&auth.Claims{Subject: "u1"}, nil, &calls),
	}
	_, err := c.Verify(ctx, "tok")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Verify() error = %v, want %v", err, context.Canceled)
	}
	if calls != 0 {
		t.Errorf("second verifier calls = %d, want 0", calls)
	}
}
