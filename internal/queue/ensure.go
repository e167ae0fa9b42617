package queue

import (
	"github.com/felixgeelhaar/mentora/internal/interview"
	"github.com/felixgeelhaar/mentora/internal/study"
)

var (
	_ interview.Publisher = (*Producer)(nil)
	_ study.Publisher     = (*Producer)(nil)
)
