package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/speedwagon-io/amtron-exporter/internal/model"
)

// Store holds the latest charger snapshot and renders it on collection.
// The poll scheduler is the only writer, scrape handlers are the readers;
// the atomic pointer swap means a reader sees either the previous complete
// snapshot or the new one, never a mix. Absent readings are omitted from
// the exposition so that zero always means a reported zero.
type Store struct {
	snap atomic.Pointer[model.Snapshot]

	envTemperature      *prometheus.Desc
	offeredAmperage     *prometheus.Desc
	chargingAmperage    *prometheus.Desc
	errorState          *prometheus.Desc
	type2Status         *prometheus.Desc
	loadContactorCycles *prometheus.Desc
	plugCycles          *prometheus.Desc
	voltage             *prometheus.Desc
	frequency           *prometheus.Desc
	lastPoll            *prometheus.Desc
}

func NewStore() *Store {
	return &Store{
		envTemperature: prometheus.NewDesc(
			"env_temperature", "Environment Temperature", nil, nil),
		offeredAmperage: prometheus.NewDesc(
			"offered_amperage", "Offered amperage to the vehicle (as indicated by PWM)", nil, nil),
		chargingAmperage: prometheus.NewDesc(
			"charging_amperage", "Amperage of all phases while charging", []string{"phase"}, nil),
		errorState: prometheus.NewDesc(
			"error_state", "Whether the charger indicates an error or not", nil, nil),
		type2Status: prometheus.NewDesc(
			"type2_status", "Type 2 Connector Status", []string{"type2_status"}, nil),
		loadContactorCycles: prometheus.NewDesc(
			"load_contactor_cycles", "Number of type 2 load contactor cycles", nil, nil),
		plugCycles: prometheus.NewDesc(
			"type2_plug_cycles", "Number of type 2 plug cycles", nil, nil),
		voltage: prometheus.NewDesc(
			"ocpp_voltage", "OCPP Voltage", []string{"phase"}, nil),
		frequency: prometheus.NewDesc(
			"ocpp_frequency", "OCPP Frequency", nil, nil),
		lastPoll: prometheus.NewDesc(
			"amtron_last_successful_poll_timestamp_seconds",
			"Unix timestamp of the last successful device poll", nil, nil),
	}
}

// Replace publishes a new snapshot. Called by the poll scheduler only.
func (s *Store) Replace(snap *model.Snapshot) {
	s.snap.Store(snap)
}

// Current returns the latest snapshot, or nil before the first successful
// poll.
func (s *Store) Current() *model.Snapshot {
	return s.snap.Load()
}

func (s *Store) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.envTemperature
	ch <- s.offeredAmperage
	ch <- s.chargingAmperage
	ch <- s.errorState
	ch <- s.type2Status
	ch <- s.loadContactorCycles
	ch <- s.plugCycles
	ch <- s.voltage
	ch <- s.frequency
	ch <- s.lastPoll
}

func (s *Store) Collect(ch chan<- prometheus.Metric) {
	snap := s.Current()
	if snap == nil {
		return
	}

	emitReading(ch, s.envTemperature, snap.EnvTemperature)
	emitReading(ch, s.offeredAmperage, snap.OfferedAmperage)
	emitPhases(ch, s.chargingAmperage, snap.ChargingAmperage)
	emitReading(ch, s.errorState, snap.ErrorState)
	emitReading(ch, s.loadContactorCycles, snap.LoadContactorCycles)
	emitReading(ch, s.plugCycles, snap.PlugCycles)
	emitPhases(ch, s.voltage, snap.Voltage)
	emitReading(ch, s.frequency, snap.Frequency)

	// One-hot over the six connector states; when the device asserts no
	// recognizable state the whole family is omitted.
	if snap.ConnectorStatus != model.Type2StatusNone {
		for _, status := range model.Type2Statuses {
			v := 0.0
			if status == snap.ConnectorStatus {
				v = 1.0
			}
			ch <- prometheus.MustNewConstMetric(s.type2Status, prometheus.GaugeValue, v, string(status))
		}
	}

	ch <- prometheus.MustNewConstMetric(s.lastPoll, prometheus.GaugeValue, float64(snap.FetchedAt.Unix()))
}

func emitReading(ch chan<- prometheus.Metric, desc *prometheus.Desc, r model.Reading) {
	if !r.Valid {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, r.Value)
}

func emitPhases(ch chan<- prometheus.Metric, desc *prometheus.Desc, readings map[model.Phase]model.Reading) {
	for _, phase := range model.Phases {
		r, ok := readings[phase]
		if !ok || !r.Valid {
			continue
		}
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, r.Value, string(phase))
	}
}
