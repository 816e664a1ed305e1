package domain

import "time"

// StateKind is the observable progress indicator of the trading cycle.
type StateKind string

const (
	StateIdle     StateKind = "idle"
	StateThinking StateKind = "thinking"
	StateChoosing StateKind = "choosing"
	StateBought   StateKind = "bought"
	StateSold     StateKind = "sold"
)

// AgentState is the snapshot of what the agent is doing right now.
// Overwritten wholesale on every transition; the ledger stays authoritative
// for position state.
type AgentState struct {
	Kind              StateKind   `json:"kind"`
	At                string      `json:"at"`
	Message           string      `json:"message,omitempty"`
	CandidateCoins    []Candidate `json:"candidateCoins,omitempty"`
	ChosenMint        string      `json:"chosenMint,omitempty"`
	ChosenSymbol      string      `json:"chosenSymbol,omitempty"`
	ChosenMcapUsd     *float64    `json:"chosenMcapUsd,omitempty"`
	ChosenHolderCount *int        `json:"chosenHolderCount,omitempty"`
	ChosenReason      string      `json:"chosenReason,omitempty"`
	LastTx            string      `json:"lastTx,omitempty"`
}

// IdleState returns the default snapshot.
func IdleState(now time.Time) AgentState {
	return AgentState{Kind: StateIdle, At: FormatTimestamp(now)}
}

// ActivityType classifies activity log entries.
type ActivityType string

const (
	ActivityIdle       ActivityType = "idle"
	ActivityThinking   ActivityType = "thinking"
	ActivityCandidates ActivityType = "candidates"
	ActivityChosen     ActivityType = "chosen"
	ActivityBought     ActivityType = "bought"
	ActivitySell       ActivityType = "sell"
	ActivityHold       ActivityType = "hold"
	ActivitySkip       ActivityType = "skip"
)

// ActivityEntry is one line of the human-facing activity log.
type ActivityEntry struct {
	Type       ActivityType `json:"type"`
	At         string       `json:"at"`
	Symbol     string       `json:"symbol,omitempty"`
	Message    string       `json:"message"`
	Reason     string       `json:"reason,omitempty"`
	PnlPercent *float64     `json:"pnlPercent,omitempty"`
	HoldMin    *float64     `json:"holdMin,omitempty"`
}
