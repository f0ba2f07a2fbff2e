// Package model defines the core domain types shared across the league engine.
// All monetary values use shopspring/decimal, in millions; never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is a canonical lane token. "bottom" is accepted only at the
// boundaries and normalized to RoleADC by the position package.
type Role string

const (
	RoleTop     Role = "top"
	RoleJungle  Role = "jungle"
	RoleMid     Role = "mid"
	RoleADC     Role = "adc"
	RoleSupport Role = "support"
)

// Roles lists the five lineup positions in display order.
var Roles = [...]Role{RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport}

// Index returns the slot index of r in Roles, or -1.
func (r Role) Index() int {
	for i, role := range Roles {
		if role == r {
			return i
		}
	}
	return -1
}

// PlayerRef is the canonical player record produced by the reference data
// provider. Price is whatever the provider quoted for this lookup.
type PlayerRef struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	FullName string          `json:"full_name,omitempty"`
	Team     string          `json:"team"` // team code, e.g. "G2"
	TeamName string          `json:"team_name,omitempty"`
	TeamID   string          `json:"team_id,omitempty"`
	Role     Role            `json:"role"`
	ImageURL string          `json:"image_url,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

// Ownership records that a user holds a player in a league.
// At most one row per (UserID, LeagueID, PlayerID).
// Team and Role are snapshotted at acquisition for cap accounting.
type Ownership struct {
	UserID        string          `json:"user_id" db:"user_id"`
	LeagueID      string          `json:"league_id" db:"league_id"`
	PlayerID      string          `json:"player_id" db:"player_id"`
	Team          string          `json:"team" db:"team"`
	Role          Role            `json:"role" db:"role"`
	PurchasePrice decimal.Decimal `json:"purchase_price" db:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date" db:"purchase_date"`
}

// BudgetAccount is a user's spendable balance in one league. Money >= 0.
type BudgetAccount struct {
	UserID   string          `json:"user_id" db:"user_id"`
	LeagueID string          `json:"league_id" db:"league_id"`
	Money    decimal.Decimal `json:"money" db:"money"`
	JoinedAt time.Time       `json:"joined_at" db:"joined_at"`
}

// LineupSlot assigns an owned player to a position for one matchday.
// At most one row per (UserID, LeagueID, Position, Matchday).
type LineupSlot struct {
	UserID   string `json:"user_id" db:"user_id"`
	LeagueID string `json:"league_id" db:"league_id"`
	Position Role   `json:"position" db:"position"`
	Matchday int    `json:"matchday" db:"matchday"`
	PlayerID string `json:"player_id" db:"player_id"`
}

// OfferStatus is the state of a trade proposal.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
	// OfferCompleted is the success state written on accept; it is
	// treated exactly like OfferAccepted.
	OfferCompleted OfferStatus = "completed"
)

// Terminal reports whether no further transition is possible.
func (s OfferStatus) Terminal() bool {
	return s != OfferPending
}

// Succeeded reports whether the offer settled.
func (s OfferStatus) Succeeded() bool {
	return s == OfferAccepted || s == OfferCompleted
}

// Offer is a seller-initiated proposal to transfer one player to a buyer.
// It does not lock the player.
type Offer struct {
	ID           string          `json:"id" db:"id"`
	PlayerID     string          `json:"player_id" db:"player_id"`
	LeagueID     string          `json:"league_id" db:"league_id"`
	SellerUserID string          `json:"seller_user_id" db:"seller_user_id"`
	BuyerUserID  string          `json:"buyer_user_id" db:"buyer_user_id"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Status       OfferStatus     `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at" db:"expires_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ExpiredAt reports whether a pending offer is past its deadline at now.
func (o *Offer) ExpiredAt(now time.Time) bool {
	return o.Status == OfferPending && now.After(o.ExpiresAt)
}

// TransactionType classifies an activity log entry.
type TransactionType string

const (
	TxPurchase TransactionType = "purchase"
	TxSale     TransactionType = "sale"
	TxTrade    TransactionType = "trade"
)

// Transaction is an immutable activity log entry written in the same
// atomic unit as the mutation it describes.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	Type         TransactionType `json:"type" db:"type"`
	LeagueID     string          `json:"league_id" db:"league_id"`
	PlayerID     string          `json:"player_id" db:"player_id"`
	PlayerName   string          `json:"player_name" db:"player_name"`
	PlayerTeam   string          `json:"player_team" db:"player_team"`
	PlayerRole   Role            `json:"player_role" db:"player_role"`
	Price        decimal.Decimal `json:"price" db:"price"`
	UserID       string          `json:"user_id,omitempty" db:"user_id"`               // purchase / sale
	SellerUserID string          `json:"seller_user_id,omitempty" db:"seller_user_id"` // trade
	BuyerUserID  string          `json:"buyer_user_id,omitempty" db:"buyer_user_id"`   // trade
	OfferID      string          `json:"offer_id,omitempty" db:"offer_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// RosterEntry is an owned player with reference data merged in.
type RosterEntry struct {
	PlayerRef
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
}

// Roster is a user's holdings and balance in a league.
type Roster struct {
	UserID   string          `json:"user_id"`
	LeagueID string          `json:"league_id"`
	Money    decimal.Decimal `json:"money"`
	Players  []RosterEntry   `json:"players"`
}

// Starter is an occupied lineup slot with reference data merged in.
type Starter struct {
	PlayerRef
	Position Role `json:"position"`
	Matchday int  `json:"matchday"`
}

// OfferInbox splits a user's pending offers by direction.
type OfferInbox struct {
	Incoming []Offer `json:"incoming"`
	Outgoing []Offer `json:"outgoing"`
}
