package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/speedwagon-io/amtron-exporter/internal/model"
)

func fullSnapshot() *model.Snapshot {
	snap := model.NewSnapshot(time.Unix(1700000000, 0).UTC())
	snap.EnvTemperature = model.NewReading(33.0)
	snap.OfferedAmperage = model.NewReading(0.0)
	snap.ErrorState = model.NewReading(0)
	snap.ConnectorStatus = model.Type2StatusA
	snap.LoadContactorCycles = model.NewReading(5)
	snap.PlugCycles = model.NewReading(49)
	snap.Frequency = model.NewReading(50.01)
	for _, phase := range model.Phases {
		snap.ChargingAmperage[phase] = model.NewReading(0.0)
	}
	snap.Voltage[model.PhaseL1] = model.NewReading(231)
	snap.Voltage[model.PhaseL2] = model.NewReading(229)
	snap.Voltage[model.PhaseL3] = model.NewReading(230)
	return snap
}

func TestStore_CollectFullSnapshot(t *testing.T) {
	store := NewStore()
	store.Replace(fullSnapshot())

	expected := `
# HELP amtron_last_successful_poll_timestamp_seconds Unix timestamp of the last successful device poll
# TYPE amtron_last_successful_poll_timestamp_seconds gauge
amtron_last_successful_poll_timestamp_seconds 1.7e+09
# HELP charging_amperage Amperage of all phases while charging
# TYPE charging_amperage gauge
charging_amperage{phase="L1"} 0
charging_amperage{phase="L2"} 0
charging_amperage{phase="L3"} 0
# HELP env_temperature Environment Temperature
# TYPE env_temperature gauge
env_temperature 33
# HELP error_state Whether the charger indicates an error or not
# TYPE error_state gauge
error_state 0
# HELP load_contactor_cycles Number of type 2 load contactor cycles
# TYPE load_contactor_cycles gauge
load_contactor_cycles 5
# HELP ocpp_frequency OCPP Frequency
# TYPE ocpp_frequency gauge
ocpp_frequency 50.01
# HELP ocpp_voltage OCPP Voltage
# TYPE ocpp_voltage gauge
ocpp_voltage{phase="L1"} 231
ocpp_voltage{phase="L2"} 229
ocpp_voltage{phase="L3"} 230
# HELP offered_amperage Offered amperage to the vehicle (as indicated by PWM)
# TYPE offered_amperage gauge
offered_amperage 0
# HELP type2_plug_cycles Number of type 2 plug cycles
# TYPE type2_plug_cycles gauge
type2_plug_cycles 49
# HELP type2_status Type 2 Connector Status
# TYPE type2_status gauge
type2_status{type2_status="A"} 1
type2_status{type2_status="B"} 0
type2_status{type2_status="C"} 0
type2_status{type2_status="D"} 0
type2_status{type2_status="E"} 0
type2_status{type2_status="F"} 0
`

	if err := testutil.CollectAndCompare(store, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestStore_EmptyBeforeFirstPoll(t *testing.T) {
	store := NewStore()

	if store.Current() != nil {
		t.Fatal("expected no snapshot before first replace")
	}
	if got := testutil.CollectAndCount(store); got != 0 {
		t.Fatalf("expected no metrics before first snapshot, got %d", got)
	}
}

func TestStore_AbsentReadingsOmitted(t *testing.T) {
	snap := model.NewSnapshot(time.Unix(1700000000, 0).UTC())
	snap.EnvTemperature = model.NewReading(21.5)

	store := NewStore()
	store.Replace(snap)

	// Only the temperature and the poll timestamp should be present.
	if got := testutil.CollectAndCount(store); got != 2 {
		t.Fatalf("expected 2 samples, got %d", got)
	}
	if got := testutil.CollectAndCount(store, "offered_amperage"); got != 0 {
		t.Fatalf("expected absent offered_amperage, got %d samples", got)
	}
	if got := testutil.CollectAndCount(store, "type2_status"); got != 0 {
		t.Fatalf("expected absent type2_status, got %d samples", got)
	}
}

func TestStore_NoConnectorStateOmitsFamily(t *testing.T) {
	snap := fullSnapshot()
	snap.ConnectorStatus = model.Type2StatusNone

	store := NewStore()
	store.Replace(snap)

	if got := testutil.CollectAndCount(store, "type2_status"); got != 0 {
		t.Fatalf("expected no connector status samples, got %d", got)
	}
}

func TestStore_ReplaceIsAtomic(t *testing.T) {
	store := NewStore()

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Writers publish snapshots whose fields all carry the same value; a
	// reader observing a mix of values has seen a torn snapshot.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			v := float64(i % 1000)
			snap := model.NewSnapshot(time.Unix(1700000000, 0).UTC())
			snap.EnvTemperature = model.NewReading(v)
			snap.OfferedAmperage = model.NewReading(v)
			snap.Frequency = model.NewReading(v)
			store.Replace(snap)
		}
	}()

	var failures int
	for i := 0; i < 100000; i++ {
		snap := store.Current()
		if snap == nil {
			continue
		}
		if snap.EnvTemperature.Value != snap.OfferedAmperage.Value ||
			snap.EnvTemperature.Value != snap.Frequency.Value {
			failures++
		}
	}
	close(done)
	wg.Wait()

	if failures > 0 {
		t.Fatalf("observed %d torn snapshots", failures)
	}
}
