// Package vacancy contains the core domain types for the chalet vacancy
// notification service.
package vacancy

import "time"

// DateFormat is the wire format for all calendar dates (config, ledger
// columns, and the campground checker command line).
const DateFormat = "2006-01-02"

// DateRange is an inclusive calendar date span in YYYY-MM-DD form.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate reports whether both endpoints parse as YYYY-MM-DD dates.
func (r DateRange) Validate() error {
	if _, err := time.Parse(DateFormat, r.Start); err != nil {
		return err
	}
	_, err := time.Parse(DateFormat, r.End)
	return err
}

// Offer identifies one notifiable unit: a source URL plus an optional date
// range. Chalet pages are perpetual (no range); campground lookups carry the
// range they were checked for.
type Offer struct {
	SourceURL string     `json:"source_url"`
	DateRange *DateRange `json:"date_range,omitempty"`
	Name      string     `json:"name,omitempty"` // Human-readable label for emails (park name)
}

// Key returns a deterministic serialization of the offer identity, used for
// ledger lookups and for collapsing duplicate results. Offers without a date
// range always serialize both date fields as empty so that "no range" has a
// single representation.
func (o Offer) Key() string {
	start, end := "", ""
	if o.DateRange != nil {
		start = o.DateRange.Start
		end = o.DateRange.End
	}
	return o.SourceURL + "|" + start + "|" + end
}

// Equal reports whether two offers are the same notifiable unit. The name is
// informational and does not participate in identity.
func (o Offer) Equal(other Offer) bool {
	return o.Key() == other.Key()
}

// Slot is one parsed availability row for an offer, e.g. one calendar date
// line from a chalet vacancy table.
type Slot struct {
	Label  string
	Value  string
	Booked bool
}

// Observation is the live result of checking one offer. Created fresh each
// run by a source adapter and discarded when the run completes.
type Observation struct {
	Offer      Offer
	HasVacancy bool
	Slots      []Slot
}

// Record is the persisted proof that a recipient was already notified about
// an offer.
type Record struct {
	Recipient string
	Offer     Offer
}
