package game

import (
	"context"
	"math"
	mathrand "math/rand"

	"github.com/jackc/pgx/v5"

	"minegrid/internal/events"
)

// Casino bets are diamonds, debited up front; the payout (when any) is
// credited in the same transaction.

type blackjackOutcome struct {
	Player  int64
	Dealer  int64
	Outcome string
	Payout  int64
}

// resolveBlackjack scores a single-draw hand: player busts above 21, an
// unbusted dealer above 21 loses, ties push the stake back, a win pays 2x.
func resolveBlackjack(player, dealer, bet int64) blackjackOutcome {
	out := blackjackOutcome{Player: player, Dealer: dealer}
	switch {
	case player > 21:
		out.Outcome = "bust"
	case dealer > 21:
		out.Outcome = "win"
		out.Payout = bet * 2
	case player > dealer:
		out.Outcome = "win"
		out.Payout = bet * 2
	case player == dealer:
		out.Outcome = "push"
		out.Payout = bet
	default:
		out.Outcome = "lose"
	}
	return out
}

// drawBlackjackHands draws the player total in 16..22 and the dealer total
// in 15..24.
func drawBlackjackHands(r *mathrand.Rand) (player, dealer int64) {
	return 16 + int64(r.Intn(7)), 15 + int64(r.Intn(10))
}

// drawCrashPoint draws the multiplier the round crashes at, rounded to two
// decimals: 5% instant bust below 1, 30% in [1.1,2), 45% in [2,4), 20% in
// [4,10).
func drawCrashPoint(r *mathrand.Rand) float64 {
	roll := r.Float64()
	var point float64
	switch {
	case roll < 0.05:
		point = 0.9
	case roll < 0.35:
		point = 1.1 + r.Float64()*0.9
	case roll < 0.80:
		point = 2.0 + r.Float64()*2.0
	default:
		point = 4.0 + r.Float64()*6.0
	}
	return math.Round(point*100) / 100
}

// crashPayout pays floor(bet x target) when the round survives past the
// chosen cash-out point.
func crashPayout(bet int64, target, crashAt float64) (bool, int64) {
	if crashAt >= target {
		return true, int64(float64(bet) * target)
	}
	return false, 0
}

var slotSymbols = []string{"banana", "star", "clover", "flame", "diamond", "seven"}

var slotTriplePays = map[string]int64{
	"banana":  5,
	"star":    7,
	"clover":  10,
	"flame":   15,
	"diamond": 12,
	"seven":   20,
}

func drawSlots(r *mathrand.Rand) [3]string {
	var spin [3]string
	for i := range spin {
		spin[i] = slotSymbols[r.Intn(len(slotSymbols))]
	}
	return spin
}

// resolveSlots pays the symbol table on a triple and 2x on any pair.
// Winning spins also mint a coin bonus of ten times the diamond payout.
func resolveSlots(spin [3]string, bet int64) (payout, coinBonus int64) {
	switch {
	case spin[0] == spin[1] && spin[1] == spin[2]:
		payout = bet * slotTriplePays[spin[0]]
	case spin[0] == spin[1] || spin[1] == spin[2] || spin[0] == spin[2]:
		payout = bet * 2
	}
	return payout, payout * 10
}

// placeBet locks the player and debits the stake.
func placeBet(ctx context.Context, tx pgx.Tx, playerID, bet int64) (*playerRow, error) {
	if bet <= 0 {
		return nil, ErrInvalidBet
	}
	p, err := lockPlayer(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Diamonds < bet {
		return nil, ErrNotEnoughGems
	}
	p.Diamonds -= bet
	return p, nil
}

func (s *Service) PlayBlackjack(ctx context.Context, playerID, bet int64) (BlackjackResult, error) {
	var out BlackjackResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := placeBet(ctx, tx, playerID, bet)
		if err != nil {
			return err
		}
		s.mu.Lock()
		player, dealer := drawBlackjackHands(s.rand)
		s.mu.Unlock()
		res := resolveBlackjack(player, dealer, bet)
		p.Diamonds += res.Payout
		if err := appendLedger(ctx, tx, playerID, "casino_blackjack", 0, res.Payout-bet); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = BlackjackResult{
			Player:    res.Player,
			Dealer:    res.Dealer,
			Outcome:   res.Outcome,
			Payout:    res.Payout,
			NetChange: res.Payout - bet,
			Diamonds:  p.Diamonds,
		}
		return nil
	})
	if err != nil {
		return BlackjackResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

func (s *Service) PlayCrash(ctx context.Context, playerID, bet int64, target float64) (CrashResult, error) {
	var out CrashResult
	if target < 1.1 || target > 10 {
		return out, ErrInvalidBet
	}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := placeBet(ctx, tx, playerID, bet)
		if err != nil {
			return err
		}
		s.mu.Lock()
		crashAt := drawCrashPoint(s.rand)
		s.mu.Unlock()
		won, payout := crashPayout(bet, target, crashAt)
		p.Diamonds += payout
		if err := appendLedger(ctx, tx, playerID, "casino_crash", 0, payout-bet); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = CrashResult{
			CrashAt:   crashAt,
			Target:    target,
			Win:       won,
			Payout:    payout,
			NetChange: payout - bet,
			Diamonds:  p.Diamonds,
		}
		return nil
	})
	if err != nil {
		return CrashResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

func (s *Service) PlaySlots(ctx context.Context, playerID, bet int64) (SlotsResult, error) {
	var out SlotsResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := placeBet(ctx, tx, playerID, bet)
		if err != nil {
			return err
		}
		s.mu.Lock()
		spin := drawSlots(s.rand)
		s.mu.Unlock()
		payout, coinBonus := resolveSlots(spin, bet)
		p.Diamonds += payout
		p.Coins += coinBonus
		if err := appendLedger(ctx, tx, playerID, "casino_slots", coinBonus, payout-bet); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = SlotsResult{
			Spin:      spin,
			Payout:    payout,
			NetChange: payout - bet,
			Diamonds:  p.Diamonds,
			Coins:     p.Coins,
		}
		return nil
	})
	if err != nil {
		return SlotsResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}
