package engine

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func testWeights() Weights {
	return Weights{
		MaterialRed:    4,
		MaterialYellow: 8,
		MaterialGreen:  2,
		MaterialBlue:   10,
		MaterialPurple: 6,
	}
}

func TestGenerateWeights_EvenWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		w := GenerateWeights(rng)
		if len(w) != len(Materials) {
			t.Fatalf("want %d weights, got %d", len(Materials), len(w))
		}
		for kind, weight := range w {
			if weight < 2 || weight > 20 || weight%2 != 0 {
				t.Fatalf("weight for %s out of policy: %d", kind, weight)
			}
		}
	}
}

func TestPlace_RecomputesBalance(t *testing.T) {
	w := testWeights()
	var b Balance

	Place(&b, SideLeft, MaterialRed, "p1", w) // 4 vs 0
	if b.IsBalanced {
		t.Fatalf("one-sided balance must not be balanced")
	}

	Place(&b, SideRight, MaterialGreen, "p2", w) // 4 vs 2
	if b.IsBalanced {
		t.Fatalf("4 vs 2 must not be balanced")
	}

	Place(&b, SideRight, MaterialGreen, "p2", w) // 4 vs 4
	if !b.IsBalanced {
		t.Fatalf("4 vs 4 must be balanced")
	}

	Place(&b, SideLeft, MaterialBlue, "p1", w) // 14 vs 4
	if b.IsBalanced {
		t.Fatalf("14 vs 4 must not be balanced")
	}
}

func TestEvaluateGuess(t *testing.T) {
	w := testWeights()
	now := time.Now()

	cases := []struct {
		name        string
		guesses     []Guess
		wantAll     bool
		wantErrKind ErrorKind
	}{
		{
			name:        "empty submission is invalid",
			guesses:     nil,
			wantErrKind: KindValidation,
		},
		{
			name:        "unknown kind rejected",
			guesses:     []Guess{{Kind: "orange", Weight: 4}},
			wantErrKind: KindValidation,
		},
		{
			name:        "weight below range rejected",
			guesses:     []Guess{{Kind: MaterialRed, Weight: 0}},
			wantErrKind: KindValidation,
		},
		{
			name:        "weight above range rejected",
			guesses:     []Guess{{Kind: MaterialRed, Weight: 21}},
			wantErrKind: KindValidation,
		},
		{
			name:    "partial all-correct subset wins",
			guesses: []Guess{{Kind: MaterialRed, Weight: 4}, {Kind: MaterialBlue, Weight: 10}},
			wantAll: true,
		},
		{
			name:    "one wrong entry spoils the set",
			guesses: []Guess{{Kind: MaterialRed, Weight: 4}, {Kind: MaterialBlue, Weight: 9}},
			wantAll: false,
		},
		{
			name: "full correct set wins",
			guesses: []Guess{
				{Kind: MaterialRed, Weight: 4},
				{Kind: MaterialYellow, Weight: 8},
				{Kind: MaterialGreen, Weight: 2},
				{Kind: MaterialBlue, Weight: 10},
				{Kind: MaterialPurple, Weight: 6},
			},
			wantAll: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, all, err := EvaluateGuess(w, tc.guesses, now)
			if tc.wantErrKind != "" {
				if err == nil || KindOf(err) != tc.wantErrKind {
					t.Fatalf("want %s error, got %v", tc.wantErrKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if all != tc.wantAll {
				t.Fatalf("allCorrect: got %v, want %v", all, tc.wantAll)
			}
			if len(results) != len(tc.guesses) {
				t.Fatalf("want %d results, got %d", len(tc.guesses), len(results))
			}
			for i, r := range results {
				if r.IsCorrect != (w[r.Kind] == r.Weight) {
					t.Fatalf("result %d: IsCorrect mismatch for %s=%d", i, r.Kind, r.Weight)
				}
			}
		})
	}
}

func TestEvaluateGuess_ValidationIsTyped(t *testing.T) {
	_, _, err := EvaluateGuess(testWeights(), []Guess{{Kind: "stone", Weight: 3}}, time.Now())
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindValidation {
		t.Fatalf("want typed validation error, got %v", err)
	}
}

func TestStartingMaterials_Composition(t *testing.T) {
	tokens := StartingMaterials()
	if len(tokens) != 10 {
		t.Fatalf("want 10 tokens, got %d", len(tokens))
	}
	perKind := map[Material]int{}
	ids := map[string]bool{}
	for _, tok := range tokens {
		perKind[tok.Kind]++
		if ids[tok.ID] {
			t.Fatalf("duplicate token id %s", tok.ID)
		}
		ids[tok.ID] = true
	}
	for _, m := range Materials {
		if perKind[m] != TokensPerKind {
			t.Fatalf("kind %s: want %d tokens, got %d", m, TokensPerKind, perKind[m])
		}
	}
}

func TestClone_DetachesBackingArrays(t *testing.T) {
	p := Player{
		ID:        "p1",
		Materials: StartingMaterials(),
		Guesses:   []GuessResult{{Kind: MaterialRed, Weight: 4}},
	}
	c := p.Clone()
	removed, ok := p.RemoveToken(p.Materials[0].ID)
	if !ok {
		t.Fatalf("remove token failed")
	}
	if c.Materials[0].ID != removed.ID {
		t.Fatalf("clone lost the removed token: got %s, want %s", c.Materials[0].ID, removed.ID)
	}
	if len(c.Materials) != 10 || len(p.Materials) != 9 {
		t.Fatalf("bags not independent: clone=%d live=%d", len(c.Materials), len(p.Materials))
	}

	w := testWeights()
	g := Game{Weights: w, Winners: []string{"p1"}}
	Place(&g.MainBalance, SideLeft, MaterialRed, "p1", w)
	cg := g.Clone()
	Place(&g.MainBalance, SideLeft, MaterialGreen, "p1", w)
	if len(cg.MainBalance.LeftSide) != 1 {
		t.Fatalf("clone balance grew with the original: %d", len(cg.MainBalance.LeftSide))
	}
	cg.Weights[MaterialRed] = 99
	if g.Weights[MaterialRed] == 99 {
		t.Fatalf("weights map shared between clone and original")
	}
	cg.Winners[0] = "p2"
	if g.Winners[0] != "p1" {
		t.Fatalf("winners slice shared between clone and original")
	}
}

func TestRemoveToken(t *testing.T) {
	p := &Player{Materials: []Token{{Kind: MaterialRed, ID: "a"}, {Kind: MaterialBlue, ID: "b"}}}

	tok, ok := p.RemoveToken("a")
	if !ok || tok.Kind != MaterialRed {
		t.Fatalf("remove a: got %v ok=%v", tok, ok)
	}
	if len(p.Materials) != 1 || p.Materials[0].ID != "b" {
		t.Fatalf("bag after removal: %+v", p.Materials)
	}

	if _, ok := p.RemoveToken("zzz"); ok {
		t.Fatalf("removing an absent token must fail")
	}
}

func TestCanAct_ReserveFloor(t *testing.T) {
	cases := []struct {
		name   string
		player Player
		want   bool
	}{
		{"two tokens can act", Player{Materials: []Token{{ID: "a"}, {ID: "b"}}}, true},
		{"one token is floored", Player{Materials: []Token{{ID: "a"}}}, false},
		{"empty bag cannot act", Player{}, false},
		{"eliminated cannot act", Player{IsEliminated: true, Materials: []Token{{ID: "a"}, {ID: "b"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.player.CanAct(); got != tc.want {
				t.Fatalf("CanAct: got %v, want %v", got, tc.want)
			}
		})
	}
}
