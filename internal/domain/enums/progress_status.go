package enums

type ProgressStatus string

const (
	ProgressStatusReading   ProgressStatus = "reading"
	ProgressStatusCompleted ProgressStatus = "completed"
)

func (s ProgressStatus) Valid() bool {
	return s == ProgressStatusReading || s == ProgressStatusCompleted
}
