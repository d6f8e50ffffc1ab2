package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"
)

// Notifier publishes an escalated complaint to an external channel. Post is
// called at most once per complaint; implementations do not need to
// deduplicate.
type Notifier interface {
	Post(ctx context.Context, imageRef, caption string) error
}

// LogOnly writes the caption to the service log instead of posting it.
// Used when no channel credentials are configured.
type LogOnly struct{}

func (LogOnly) Post(ctx context.Context, imageRef, caption string) error {
	log.Warnf("No notification channel configured, dropping escalation: %s", caption)
	return nil
}

// cityTags maps a lowercased city substring to the civic handles to tag.
// Checked in order, first match wins.
var cityTags = []struct {
	substr string
	tags   string
}{
	{"kolkata", "@KolkataPolice @kmc_kolkata"},
	{"kol", "@KolkataPolice @kmc_kolkata"},
	{"mumbai", "@MumbaiPolice"},
}

const defaultTags = "@PMOIndia @mygovindia"

// TagsForCity returns the handles to tag for a complaint's city, falling
// back to the national handles when the city is unknown.
func TagsForCity(city string) string {
	lowered := strings.ToLower(city)
	for _, entry := range cityTags {
		if strings.Contains(lowered, entry.substr) {
			return entry.tags
		}
	}
	return defaultTags
}

// BuildCaption formats the public escalation message for a complaint.
func BuildCaption(description, city string) string {
	return fmt.Sprintf("Citizen Report: %s\nPlease take action. %s", description, TagsForCity(city))
}
