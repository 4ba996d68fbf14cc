package chrono

import "time"

// DefaultLocation is the timezone the remote campus system runs in.
const DefaultLocation = "Europe/Berlin"

// LoadLocation loads the named location, an empty name resolves to DefaultLocation.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultLocation
	}
	return time.LoadLocation(name)
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in the location the implementation was created with.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct {
	location *time.Location
}

func NewStandardTime(location *time.Location) StandardTime {
	return StandardTime{location: location}
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}
