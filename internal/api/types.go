package api

// Wire types shared by the gateway, the live-event channel, and the
// review session. Field tags match the backend JSON exactly.

// Contributor is one entry of the contributor-list response.
type Contributor struct {
	ID            int64  `json:"id"`
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
	SiteAdmin     bool   `json:"site_admin"`
}

// ContributorProfile is the GitHub profile section of a contributor detail.
type ContributorProfile struct {
	Login           string  `json:"login"`
	Name            string  `json:"name"`
	AvatarURL       string  `json:"avatar_url"`
	Bio             *string `json:"bio"`
	Company         *string `json:"company"`
	Location        *string `json:"location"`
	Email           *string `json:"email"`
	Blog            string  `json:"blog"`
	TwitterUsername *string `json:"twitter_username"`
	PublicRepos     int     `json:"public_repos"`
	Followers       int     `json:"followers"`
	Following       int     `json:"following"`
	CreatedAt       string  `json:"created_at"`
}

// ContributionStats aggregates one contributor's activity in the repository.
type ContributionStats struct {
	TotalCommits       int    `json:"total_commits"`
	TotalContributions int    `json:"total_contributions"`
	FirstCommitDate    string `json:"first_commit_date"`
	LastCommitDate     string `json:"last_commit_date"`
	RecentCommits30d   int    `json:"recent_commits_30_days"`
}

// LineStats holds line-change totals for a contributor.
type LineStats struct {
	LinesAdded   int `json:"lines_added"`
	LinesDeleted int `json:"lines_deleted"`
	TotalChanges int `json:"total_changes"`
}

// TopCommit is the contributor's largest commit by total changes.
type TopCommit struct {
	SHA          string `json:"sha"`
	Message      string `json:"message"`
	Date         string `json:"date"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	TotalChanges int    `json:"total_changes"`
	FilesChanged int    `json:"files_changed"`
}

// RecentCommit is one entry of a contributor's recent commit list.
type RecentCommit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Date    string `json:"date"`
	URL     string `json:"url"`
}

// RepositoryRef identifies the repository a detail response belongs to.
type RepositoryRef struct {
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	FullName string `json:"full_name"`
}

// ContributorDetail is the lazily fetched superset of Contributor,
// keyed by login.
type ContributorDetail struct {
	Profile       ContributorProfile `json:"profile"`
	Repository    RepositoryRef      `json:"repository"`
	Contributions ContributionStats  `json:"contributions"`
	Statistics    LineStats          `json:"statistics"`
	TopCommit     *TopCommit         `json:"topCommit"`
	RecentCommits []RecentCommit     `json:"recentCommits"`
}

// CommitRef identifies the commit currently under review.
type CommitRef struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

// CommitResult is the review outcome for a single commit. Score is nil
// when the reviewer produced no numeric score.
type CommitResult struct {
	SHA    string   `json:"sha"`
	Review string   `json:"review"`
	Score  *float64 `json:"score"`
}

// ReviewStarted is the payload of the job-started event.
type ReviewStarted struct {
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ReviewProgress is one progress snapshot. Each event replaces the
// previous snapshot wholesale; Reviewed is authoritative from the server.
type ReviewProgress struct {
	Reviewed      int           `json:"reviewed"`
	Total         int           `json:"total"`
	CurrentCommit *CommitRef    `json:"currentCommit,omitempty"`
	Result        *CommitResult `json:"result,omitempty"`
	Percentage    float64       `json:"percentage"`
}

// ReviewItemError reports a per-commit failure. It does not terminate
// the review; the stream continues until reviewDone.
type ReviewItemError struct {
	Reviewed int    `json:"reviewed"`
	Total    int    `json:"total"`
	Commit   string `json:"commit"`
	Error    string `json:"error"`
}

// FinalResults is the terminal payload of a review job. AverageScore is
// nil when no commit received a numeric score.
type FinalResults struct {
	Success       bool           `json:"success"`
	ReviewResults []CommitResult `json:"reviewResults"`
	AverageScore  *float64       `json:"averageScore"`
	TotalReviewed int            `json:"totalReviewed"`
	ValidScores   int            `json:"validScoresCount"`
}

// Tokens is the credential pair issued by the backend. The contents are
// opaque to this service; only presence matters.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserDetails holds the identity section of a user. IsVerified is a
// 0/1 flag on the wire.
type UserDetails struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified int    `json:"isVerified"`
}

// CurrentUsage holds the usage counters of the active subscription.
type CurrentUsage struct {
	TotalRepositories int      `json:"totalRepositories"`
	TotalCommits      int      `json:"totalCommits"`
	TotalContributors int      `json:"totalContributors"`
	UsedContributors  []string `json:"usedContributors"`
	UsedRepositories  []string `json:"usedRepositories"`
}

// Plan tiers.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// PlanLimits holds the per-tier usage ceilings.
type PlanLimits struct {
	Repositories          int `json:"repositories"`
	Contributors          int `json:"contributors"`
	CommitsPerContributor int `json:"commitsPerContributor"`
	TotalCommitReviews    int `json:"totalCommitReviews"`
}

// PlanPrice holds the display price of a plan.
type PlanPrice struct {
	Monthly  float64 `json:"monthly"`
	Yearly   float64 `json:"yearly"`
	Currency string  `json:"currency"`
}

// Plan describes the subscription plan attached to an account.
type Plan struct {
	Name   string     `json:"name"`
	Tier   string     `json:"tier"`
	Price  PlanPrice  `json:"price"`
	Limits PlanLimits `json:"limits"`
}

// Subscription joins plan and usage for one account.
type Subscription struct {
	ID           string       `json:"id"`
	CurrentUsage CurrentUsage `json:"currentUsage"`
	CurrentPlan  Plan         `json:"currentPlan"`
	StartDate    string       `json:"startDate"`
	EndDate      string       `json:"endDate"`
	RenewalDate  string       `json:"renewalDate"`
}

// User is the authenticated account as returned by /user/me and login.
type User struct {
	PersonalDetails UserDetails  `json:"personalDetails"`
	Subscription    Subscription `json:"subscriptionsDetails"`
}

// Request payloads.

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyCodePayload struct {
	Email string `json:"email"`
	Code  int    `json:"code"`
}

type ForgetPasswordPayload struct {
	Email string `json:"email"`
}

type ResetPasswordPayload struct {
	NewPassword string `json:"newPassword"`
}

type GetContributorsPayload struct {
	GithubURL string `json:"githubUrl"`
}

type ContributorDetailPayload struct {
	GithubURL string `json:"githubUrl"`
	Login     string `json:"login"`
}

// StartReviewPayload triggers a review job. SocketID is the live-event
// connection id; the backend routes progress events through it.
type StartReviewPayload struct {
	GithubURL  string `json:"githubUrl"`
	Login      string `json:"login"`
	TopCommits int    `json:"topCommits"`
	SocketID   string `json:"socketId"`
}
