package usage

import "time"

// GenerationUsage 는 일자·기능별 요청/토큰 사용량 집계를 저장하는 DB 모델이다.
type GenerationUsage struct {
	ID              int64     `gorm:"column:id;primaryKey"`
	UsageDate       time.Time `gorm:"column:usage_date;type:date;not null;uniqueIndex:idx_generation_usage_date_capability"`
	Capability      string    `gorm:"column:capability;size:32;not null;uniqueIndex:idx_generation_usage_date_capability"`
	RequestCount    int64     `gorm:"column:request_count;not null;default:0"`
	InputTokens     int64     `gorm:"column:input_tokens;not null;default:0"`
	OutputTokens    int64     `gorm:"column:output_tokens;not null;default:0"`
	ReasoningTokens int64     `gorm:"column:reasoning_tokens;not null;default:0"`
	Version         int64     `gorm:"column:version;not null;default:0"`
}

// TableName 은 GORM에서 사용할 테이블명을 반환한다.
func (GenerationUsage) TableName() string {
	return "generation_usage"
}

// Delta 는 한 번에 누적할 사용량 증분이다.
type Delta struct {
	RequestCount    int64
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
}

func (d Delta) empty() bool {
	return d.RequestCount <= 0 && d.InputTokens <= 0 && d.OutputTokens <= 0
}

func (d *Delta) add(other Delta) {
	d.RequestCount += other.RequestCount
	d.InputTokens += other.InputTokens
	d.OutputTokens += other.OutputTokens
	d.ReasoningTokens += other.ReasoningTokens
}

// DailyUsage 는 API/집계용 사용량 뷰 모델이다.
// Capability 가 비어 있으면 모든 기능의 합계다.
type DailyUsage struct {
	UsageDate       time.Time
	Capability      string
	RequestCount    int64
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
}

// TotalTokens 는 입력+출력 토큰 합계를 반환한다.
func (d DailyUsage) TotalTokens() int64 {
	return d.InputTokens + d.OutputTokens
}

func (d *DailyUsage) accumulate(row GenerationUsage) {
	d.RequestCount += row.RequestCount
	d.InputTokens += row.InputTokens
	d.OutputTokens += row.OutputTokens
	d.ReasoningTokens += row.ReasoningTokens
}

func dateOf(t time.Time) time.Time {
	local := t.In(time.Local)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
}
