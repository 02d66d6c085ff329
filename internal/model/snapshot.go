package model

import "time"

type Phase string

const (
	PhaseL1 Phase = "L1"
	PhaseL2 Phase = "L2"
	PhaseL3 Phase = "L3"
)

// Phases lists all phases in exposition order.
var Phases = []Phase{PhaseL1, PhaseL2, PhaseL3}

// Type2Status is an IEC 61851 connector state letter. The empty value means
// the device asserted no recognizable state.
type Type2Status string

const (
	Type2StatusNone Type2Status = ""
	Type2StatusA    Type2Status = "A"
	Type2StatusB    Type2Status = "B"
	Type2StatusC    Type2Status = "C"
	Type2StatusD    Type2Status = "D"
	Type2StatusE    Type2Status = "E"
	Type2StatusF    Type2Status = "F"
)

// Type2Statuses lists all connector states in exposition order.
var Type2Statuses = []Type2Status{
	Type2StatusA,
	Type2StatusB,
	Type2StatusC,
	Type2StatusD,
	Type2StatusE,
	Type2StatusF,
}

// Reading is a single numeric value from the device. Valid distinguishes a
// reported zero from a field the device did not report or reported
// malformed; invalid readings are omitted from the exposition.
type Reading struct {
	Value float64
	Valid bool
}

// NewReading returns a valid reading.
func NewReading(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Snapshot is the complete set of charger readings from one successful poll.
// It is never mutated after construction; the store swaps whole snapshots.
type Snapshot struct {
	EnvTemperature      Reading
	OfferedAmperage     Reading
	ChargingAmperage    map[Phase]Reading
	ErrorState          Reading
	ConnectorStatus     Type2Status
	LoadContactorCycles Reading
	PlugCycles          Reading
	Voltage             map[Phase]Reading
	Frequency           Reading
	FetchedAt           time.Time
}

// NewSnapshot returns an empty snapshot with all readings absent.
func NewSnapshot(fetchedAt time.Time) *Snapshot {
	return &Snapshot{
		ChargingAmperage: make(map[Phase]Reading, len(Phases)),
		Voltage:          make(map[Phase]Reading, len(Phases)),
		FetchedAt:        fetchedAt,
	}
}
