package audit

import (
	"time"

	utils "livewall/pkg/utils"

	"github.com/sirupsen/logrus"
)

// AuditLogger records changes to the featured cache as structured events
type AuditLogger struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewAuditLogger creates an audit logger writing through logger, or the
// shared application logger when logger is nil
func NewAuditLogger(logger *logrus.Logger) *AuditLogger {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogFeaturedCached logs a featured stream entering the cache for the first time
func (al *AuditLogger) LogFeaturedCached(mintID, title string) {
	al.log(logrus.Fields{
		"event_type": "featured_cached",
		"mint_id":    mintID,
		"title":      title,
	}).Info("Featured stream cached")
}

// LogFeaturedEvicted logs a cache entry dropped because it is no longer featured
func (al *AuditLogger) LogFeaturedEvicted(mintID string) {
	al.log(logrus.Fields{
		"event_type": "featured_evicted",
		"mint_id":    mintID,
	}).Info("Featured stream evicted from cache")
}

func (al *AuditLogger) log(fields logrus.Fields) *logrus.Entry {
	fields["audit"] = true
	fields["occurred_at"] = al.now().UTC().Format(time.RFC3339)
	return al.logger.WithFields(fields)
}
