package domain

// Contestant is one roster entry. Attributes holds the raw roster fields.
type Contestant struct {
	ID         string         `json:"onChainId"`
	Name       string         `json:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Vote is a single vote as applied to the leaderboard.
type Vote struct {
	EventID      string // signature#index, unique per decoded event
	ContestID    string
	ContestantID string
	VotedBy      string
	CastedAt     int64
}

// VoteRecord is one entry of a contestant's vote history.
type VoteRecord struct {
	VotedBy   string `json:"votedBy"`
	Timestamp int64  `json:"timestamp"`
}

// LeaderboardEntry is one ranked row. Rank is nil for contestants without votes.
type LeaderboardEntry struct {
	Rank              *int        `json:"rank"`
	ContestantID      string      `json:"contestantId"`
	Votes             int64       `json:"votes"`
	PercentageOfTotal float64     `json:"percentageOfTotal"`
	Contestant        *Contestant `json:"contestantData,omitempty"`
}

// Leaderboard is a complete, paginated snapshot of one contest.
type Leaderboard struct {
	ContestID        string             `json:"contestId"`
	Entries          []LeaderboardEntry `json:"entries"`
	TotalVotes       int64              `json:"totalVotes"`
	TotalContestants int                `json:"totalContestants"`
	LastUpdated      int64              `json:"lastUpdated"`
}

// ContestantStats is the rank and vote count of a single contestant.
type ContestantStats struct {
	Rank  *int  `json:"rank"`
	Votes int64 `json:"votes"`
}
