package enums

// CompetitionStatus gates whether a competition accepts entries.
type CompetitionStatus string

const (
	CompetitionStatusDraft  CompetitionStatus = "draft"
	CompetitionStatusLive   CompetitionStatus = "live"
	CompetitionStatusClosed CompetitionStatus = "closed"
)

var competitionStatuses = []CompetitionStatus{
	CompetitionStatusDraft,
	CompetitionStatusLive,
	CompetitionStatusClosed,
}

func (c CompetitionStatus) String() string { return string(c) }

func (c CompetitionStatus) IsValid() bool {
	_, err := ParseCompetitionStatus(string(c))
	return err == nil
}

func ParseCompetitionStatus(value string) (CompetitionStatus, error) {
	return parse("competition status", competitionStatuses, value)
}
