package forum

import (
	"sort"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/models"
)

const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

// ApplyVote toggles userID's vote of voteType on a and returns the updated
// answer. Voting the same way twice removes the vote; voting the other way
// moves it. a itself is not modified.
func ApplyVote(a *models.Answer, userID, voteType string) (*models.Answer, error) {
	if voteType != VoteUp && voteType != VoteDown {
		return nil, apperr.Validation("voteType must be upvote or downvote")
	}
	if userID == "" {
		return nil, apperr.Unauthorized("missing user")
	}

	up, down := toSet(a.Upvotes), toSet(a.Downvotes)
	same, other := up, down
	if voteType == VoteDown {
		same, other = down, up
	}

	if _, ok := same[userID]; ok {
		delete(same, userID)
	} else {
		same[userID] = struct{}{}
		delete(other, userID)
	}

	out := *a
	out.Upvotes = fromSet(up)
	out.Downvotes = fromSet(down)
	out.Votes = len(out.Upvotes) - len(out.Downvotes)
	return &out, nil
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func fromSet(m map[string]struct{}) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
