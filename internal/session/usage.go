package session

import (
	"math"

	"github.com/jugalmahida/prodevscore/internal/api"
)

// commitCountOptions are the selectable review sizes, smallest first.
// The plan's commitsPerContributor limit trims this set from the top.
var commitCountOptions = []int{3, 5, 10}

// UsagePercent returns round(min(100, used/total*100)).
// A zero or negative total is reported as 0, never a division by zero.
func UsagePercent(used, total int) int {
	if total <= 0 {
		return 0
	}
	pct := float64(used) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return int(math.Round(pct))
}

// Usage is a read-only projection of the authenticated subscription.
// It is always replaced wholesale by a fresh server value, never
// mutated locally.
type Usage struct {
	CommitsUsed       int    `json:"commitsUsed"`
	CommitsTotal      int    `json:"commitsTotal"`
	RepositoriesUsed  int    `json:"repositoriesUsed"`
	RepositoriesTotal int    `json:"repositoriesTotal"`
	ContributorsUsed  int    `json:"contributorsUsed"`
	ContributorsTotal int    `json:"contributorsTotal"`
	PlanTier          string `json:"planTier"`
}

// UsageFromUser projects the current usage counters against the plan
// limits of u's subscription.
func UsageFromUser(u *api.User) Usage {
	sub := u.Subscription
	return Usage{
		CommitsUsed:       sub.CurrentUsage.TotalCommits,
		CommitsTotal:      sub.CurrentPlan.Limits.TotalCommitReviews,
		RepositoriesUsed:  sub.CurrentUsage.TotalRepositories,
		RepositoriesTotal: sub.CurrentPlan.Limits.Repositories,
		ContributorsUsed:  sub.CurrentUsage.TotalContributors,
		ContributorsTotal: sub.CurrentPlan.Limits.Contributors,
		PlanTier:          sub.CurrentPlan.Tier,
	}
}

// CommitsPercent returns the commit usage as a rounded percentage.
func (u Usage) CommitsPercent() int {
	return UsagePercent(u.CommitsUsed, u.CommitsTotal)
}

// RepositoriesPercent returns the repository usage as a rounded percentage.
func (u Usage) RepositoriesPercent() int {
	return UsagePercent(u.RepositoriesUsed, u.RepositoriesTotal)
}

// ContributorsPercent returns the contributor usage as a rounded percentage.
func (u Usage) ContributorsPercent() int {
	return UsagePercent(u.ContributorsUsed, u.ContributorsTotal)
}

// AllowedCommitCounts returns the commit-count options permitted by the
// plan's commitsPerContributor limit. The smallest option is always
// permitted so a review can be configured on any tier.
func AllowedCommitCounts(limit int) []int {
	allowed := []int{commitCountOptions[0]}
	for _, n := range commitCountOptions[1:] {
		if n <= limit {
			allowed = append(allowed, n)
		}
	}
	return allowed
}

// ClampCommitCount returns n when it is in allowed, otherwise the
// lowest permitted value.
func ClampCommitCount(n int, allowed []int) int {
	for _, a := range allowed {
		if a == n {
			return n
		}
	}
	return allowed[0]
}
