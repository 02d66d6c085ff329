package amtron

import (
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/speedwagon-io/amtron-exporter/internal/lib/logger/sl"
	"github.com/speedwagon-io/amtron-exporter/internal/model"
)

// Display-value patterns of the dashboard fields. The firmware renders
// readings as formatted strings, so every numeric value goes through one of
// these before it is trusted.
var (
	envTemperatureRe   = regexp.MustCompile(`^.*(\+|-)(\d+\.\d+)\sC.*$`)
	offeredAmperageRe  = regexp.MustCompile(`^(\d+\.?\d*)\sA$`)
	chargingAmperageRe = regexp.MustCompile(`^\(\s(\d+\.\d+)\s\|\s(\d+\.\d+)\s\|\s(\d+\.\d+)\s\)\s\[A\]$`)
	type2StatusRe      = regexp.MustCompile(`^\((\w)\).*$`)
	cycleCounterRe     = regexp.MustCompile(`^(\d+)/.*$`)
	voltageRe          = regexp.MustCompile(`^\(\s(\d+)\s\|\s(\d+)\s\|\s(\d+)\s\)\s\[V\]$`)
	frequencyRe        = regexp.MustCompile(`^(\d+\.\d+)\sHz$`)
)

const (
	groupSystemStatus   = "system_status"
	groupEManagerStatus = "emanager_status"
)

// Parser converts a raw dashboard payload into a snapshot. Every field is
// extracted independently: a missing or malformed field yields an absent
// reading, never a failed parse. Only a payload that is not recognizable as
// a dashboard at all is a hard error.
type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

func (p *Parser) Parse(raw []byte) (*model.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Kind: ParseUnrecognizedFormat, Err: err}
	}
	if len(doc.Groups) == 0 {
		return nil, &ParseError{
			Kind: ParseUnrecognizedFormat,
			Err:  errors.New("no dashboard groups in response"),
		}
	}

	snap := model.NewSnapshot(time.Now().UTC())
	snap.EnvTemperature = p.envTemperature(&doc)
	snap.OfferedAmperage = p.offeredAmperage(&doc)
	snap.ChargingAmperage = p.phaseTriple(&doc, "charging amperage",
		groupSystemStatus, "OcppMeterCurrent_meter", chargingAmperageRe)
	snap.ErrorState = p.errorState(&doc)
	snap.ConnectorStatus = p.connectorStatus(&doc)
	snap.LoadContactorCycles = p.cycleCounter(&doc, "load contactor cycles", "Type2NumberContactorCyclesRO_vehicleif")
	snap.PlugCycles = p.cycleCounter(&doc, "plug cycles", "Type2PlugCounterRO_vehicleif")
	snap.Voltage = p.voltage(&doc)
	snap.Frequency = p.frequency(&doc)

	return snap, nil
}

func (p *Parser) envTemperature(doc *document) model.Reading {
	raw, ok := doc.itemC2(groupEManagerStatus, "EnergyManagerTable_energyman", "StateMon_energyman")
	if !ok {
		p.log.Debug("environment temperature not present in dashboard")
		return model.Reading{}
	}

	m := envTemperatureRe.FindStringSubmatch(raw)
	if m == nil {
		p.log.Debug("unexpected environment temperature format", slog.String("value", raw))
		return model.Reading{}
	}

	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		p.log.Debug("failed to parse environment temperature", slog.String("value", raw), sl.Err(err))
		return model.Reading{}
	}
	if m[1] == "-" {
		v = -v
	}

	return model.NewReading(v)
}

func (p *Parser) offeredAmperage(doc *document) model.Reading {
	raw, ok := doc.fieldText(groupSystemStatus, "SignaledCurrentLimit_vehicleif")
	if !ok {
		p.log.Debug("offered amperage not present in dashboard")
		return model.Reading{}
	}

	m := offeredAmperageRe.FindStringSubmatch(raw)
	if m == nil {
		p.log.Debug("unexpected offered amperage format", slog.String("value", raw))
		return model.Reading{}
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		p.log.Debug("failed to parse offered amperage", slog.String("value", raw), sl.Err(err))
		return model.Reading{}
	}

	return model.NewReading(v)
}

func (p *Parser) errorState(doc *document) model.Reading {
	raw, ok := doc.fieldText(groupSystemStatus, "ErrorsList_custom")
	if !ok {
		p.log.Debug("error list not present in dashboard")
		return model.Reading{}
	}

	if raw == "No errors" {
		return model.NewReading(0)
	}
	return model.NewReading(1)
}

func (p *Parser) connectorStatus(doc *document) model.Type2Status {
	raw, ok := doc.fieldText(groupSystemStatus, "Type2StateConnector1_vehicleif")
	if !ok {
		p.log.Debug("connector status not present in dashboard")
		return model.Type2StatusNone
	}

	m := type2StatusRe.FindStringSubmatch(raw)
	if m == nil {
		p.log.Debug("unexpected connector status format", slog.String("value", raw))
		return model.Type2StatusNone
	}

	status := model.Type2Status(m[1])
	for _, known := range model.Type2Statuses {
		if status == known {
			return status
		}
	}

	p.log.Debug("unknown connector status token", slog.String("value", raw))
	return model.Type2StatusNone
}

func (p *Parser) cycleCounter(doc *document, what, fieldKey string) model.Reading {
	raw, ok := doc.fieldText(groupSystemStatus, fieldKey)
	if !ok {
		p.log.Debug(what+" not present in dashboard")
		return model.Reading{}
	}

	m := cycleCounterRe.FindStringSubmatch(raw)
	if m == nil {
		p.log.Debug("unexpected "+what+" format", slog.String("value", raw))
		return model.Reading{}
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		p.log.Debug("failed to parse "+what, slog.String("value", raw), sl.Err(err))
		return model.Reading{}
	}

	return model.NewReading(v)
}

func (p *Parser) voltage(doc *document) map[model.Phase]model.Reading {
	raw, ok := doc.itemC2(groupEManagerStatus, "FirstMeterTable_meter", "OcppMeterVoltage_meter")
	if !ok {
		p.log.Debug("voltage not present in dashboard")
		return map[model.Phase]model.Reading{}
	}
	return p.matchPhaseTriple("voltage", raw, voltageRe)
}

func (p *Parser) frequency(doc *document) model.Reading {
	raw, ok := doc.itemC2(groupEManagerStatus, "FirstMeterTable_meter", "OcppMeterFrequency_meter")
	if !ok {
		p.log.Debug("frequency not present in dashboard")
		return model.Reading{}
	}

	m := frequencyRe.FindStringSubmatch(raw)
	if m == nil {
		p.log.Debug("unexpected frequency format", slog.String("value", raw))
		return model.Reading{}
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		p.log.Debug("failed to parse frequency", slog.String("value", raw), sl.Err(err))
		return model.Reading{}
	}

	return model.NewReading(v)
}

func (p *Parser) phaseTriple(doc *document, what, groupKey, fieldKey string, re *regexp.Regexp) map[model.Phase]model.Reading {
	raw, ok := doc.fieldText(groupKey, fieldKey)
	if !ok {
		p.log.Debug(what + " not present in dashboard")
		return map[model.Phase]model.Reading{}
	}
	return p.matchPhaseTriple(what, raw, re)
}

// matchPhaseTriple parses a "( a | b | c ) [unit]" display value into
// per-phase readings. All three phases stand or fall together.
func (p *Parser) matchPhaseTriple(what, raw string, re *regexp.Regexp) map[model.Phase]model.Reading {
	readings := make(map[model.Phase]model.Reading, len(model.Phases))

	m := re.FindStringSubmatch(raw)
	if m == nil {
		p.log.Debug("unexpected "+what+" format", slog.String("value", raw))
		return readings
	}

	for i, phase := range model.Phases {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			p.log.Debug("failed to parse "+what, slog.String("value", raw), sl.Err(err))
			return make(map[model.Phase]model.Reading, len(model.Phases))
		}
		readings[phase] = model.NewReading(v)
	}

	return readings
}
