package models

// Reaction is the aggregate of votes for one emoji on one message.
// VoterNames is index-aligned with Voters.
type Reaction struct {
	MessageID  string   `json:"messageId"`
	Emoji      string   `json:"emoji"`
	Voters     []string `json:"voters"`
	VoterNames []string `json:"voterNames"`
	Count      int      `json:"count"`
}

// ReactionVote is one stored vote row.
type ReactionVote struct {
	MessageID string `db:"message_id"`
	Emoji     string `db:"emoji"`
	VoterID   string `db:"voter_id"`
	VoterName string `db:"voter_name"`
}

// AggregateVotes folds vote rows, already in vote order, into per-emoji
// reactions ordered by each emoji's first vote.
func AggregateVotes(votes []ReactionVote) []Reaction {
	out := []Reaction{}
	index := map[string]int{}
	for _, v := range votes {
		key := v.MessageID + "\x00" + v.Emoji
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Reaction{MessageID: v.MessageID, Emoji: v.Emoji})
		}
		out[i].Voters = append(out[i].Voters, v.VoterID)
		out[i].VoterNames = append(out[i].VoterNames, v.VoterName)
		out[i].Count++
	}
	return out
}
