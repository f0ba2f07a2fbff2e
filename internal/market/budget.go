package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lecfantasy/league-engine/internal/model"
	"github.com/lecfantasy/league-engine/internal/store"
)

// lockAccount locks a participant's budget inside tx.
func lockAccount(ctx context.Context, tx store.Tx, userID, leagueID string) (*model.BudgetAccount, error) {
	acct, err := tx.LockAccount(ctx, userID, leagueID)
	if notFound(err) {
		return nil, rule(ErrNotParticipant, map[string]any{"user_id": userID, "league_id": leagueID},
			"user %s has not joined league %s", userID, leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return acct, nil
}

// debit withdraws amount from a locked account, refusing to go below zero.
func debit(ctx context.Context, tx store.Tx, acct *model.BudgetAccount, amount decimal.Decimal) error {
	if acct.Money.LessThan(amount) {
		return rule(ErrInsufficientFunds, map[string]any{
			"balance":   acct.Money,
			"required":  amount,
			"shortfall": amount.Sub(acct.Money),
		}, "balance %s is below the required %s", acct.Money, amount)
	}
	next := acct.Money.Sub(amount)
	if err := tx.SetMoney(ctx, acct.UserID, acct.LeagueID, next); err != nil {
		return fmt.Errorf("debit %s/%s: %w", acct.LeagueID, acct.UserID, err)
	}
	acct.Money = next
	return nil
}

// credit deposits amount into a locked account. There is no upper bound.
func credit(ctx context.Context, tx store.Tx, acct *model.BudgetAccount, amount decimal.Decimal) error {
	next := acct.Money.Add(amount)
	if err := tx.SetMoney(ctx, acct.UserID, acct.LeagueID, next); err != nil {
		return fmt.Errorf("credit %s/%s: %w", acct.LeagueID, acct.UserID, err)
	}
	acct.Money = next
	return nil
}
