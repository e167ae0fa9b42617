package postgres

import (
	"github.com/felixgeelhaar/mentora/internal/interview"
	"github.com/felixgeelhaar/mentora/internal/lesson"
	"github.com/felixgeelhaar/mentora/internal/study"
)

// Ensure PostgreSQL stores implement the storage interfaces.
var (
	_ interview.Store     = (*InterviewStore)(nil)
	_ study.Store         = (*StudyStore)(nil)
	_ lesson.Cache        = (*LessonCache)(nil)
	_ interview.Publisher = (*EventLog)(nil)
	_ study.Publisher     = (*EventLog)(nil)
)
