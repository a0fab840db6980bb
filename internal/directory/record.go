// internal/directory/record.go
//
// Wire shapes of the three NocoDB tables.  Column names follow the backend
// schema verbatim; everything string-encoded is an Encoded[T].

package directory

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/yanizio/dirsite/internal/routing"
)

// DirectoryRecord is one row of the directories table.
type DirectoryRecord struct {
	DirectoryID      string                         `json:"Directory_ID"`
	Name             string                         `json:"Name"`
	Domain           string                         `json:"Domain"`
	Theme            string                         `json:"Theme"`
	ColorScheme      string                         `json:"Color_Scheme"`
	AvailableLayouts Encoded[[]string]              `json:"Available_Layouts"`
	DefaultLayout    string                         `json:"Default_Layout"`
	Categories       Encoded[[]Category]            `json:"Categories"`
	MetaTags         Encoded[map[string]string]     `json:"Meta_Tags"`
	SocialLinks      Encoded[map[string]string]     `json:"Social_Links"`
	Deployment       Encoded[Deployment]            `json:"Deployment"`
	URLPattern       string                         `json:"URL_Pattern"`
	URLSegments      Encoded[routing.SegmentConfig] `json:"URL_Segments"`
	Description      string                         `json:"Description"`
	UpdatedAt        Timestamp                      `json:"UpdatedAt"`
}

// ListingRecord is one row of the listings table.
type ListingRecord struct {
	DirectoryID  string                  `json:"Directory_ID"`
	Slug         string                  `json:"Slug"`
	Title        string                  `json:"Title"`
	Description  string                  `json:"Description"`
	Content      string                  `json:"Content"`
	Category     string                  `json:"Category"`
	Featured     Flag                    `json:"Featured"`
	Images       Encoded[[]string]       `json:"Images"`
	Address      string                  `json:"Address"`
	Location     Encoded[Location]       `json:"Location"`
	Phone        string                  `json:"Phone"`
	Email        string                  `json:"Email"`
	Website      string                  `json:"Website"`
	Rating       Encoded[float64]        `json:"Rating"`
	Tags         Encoded[[]string]       `json:"Tags"`
	OpeningHours Encoded[[]OpeningHours] `json:"Opening_Hours"`
	CustomFields Encoded[map[string]any] `json:"Custom_Fields"`
	UpdatedAt    Timestamp               `json:"UpdatedAt"`
}

// LandingPageRecord is one row of the landing-pages table.
type LandingPageRecord struct {
	DirectoryID string           `json:"Directory_ID"`
	Slug        string           `json:"Slug"`
	Title       string           `json:"Title"`
	Content     string           `json:"Content"`
	Order       Encoded[float64] `json:"Order"`
	UpdatedAt   Timestamp        `json:"UpdatedAt"`
}

// Timestamp accepts the formats NocoDB emits for system date columns.
// Unparseable values decode to the zero time.
type Timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			*t = Timestamp(ts.UTC())
			return nil
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t))
}

// Time returns t as time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }
