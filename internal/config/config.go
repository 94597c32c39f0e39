// Package config implements the ConfigMerger: loading the declarative TOML
// document (Modbus connection, sink, named templates, device sections) and
// building the immutable Device set the scheduler consumes.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/timokroeger/data-collector/internal/decode"
	"github.com/timokroeger/data-collector/internal/device"
	"github.com/timokroeger/data-collector/internal/lineprotocol"
	"github.com/timokroeger/data-collector/internal/plan"
	"github.com/timokroeger/data-collector/internal/publisher"
)

// Error is a fatal configuration error, naming the offending field and
// device so operators can fix the document directly.
type Error struct {
	Kind   string // "ConfigConflict" | "ConfigBadDuration" | "ConfigBadRegisterType" | "ConfigMissing"
	Field  string
	Device string
	Err    error
}

func (e *Error) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("%s: device %s: field %s: %v", e.Kind, e.Device, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: field %s: %v", e.Kind, e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Modbus is the [modbus] connection block.
type Modbus struct {
	Hostname string
	Port     int
	Timeout  time.Duration
}

// Result is everything Load extracts from the document, ready for the
// scheduler/controller/publisher to consume.
type Result struct {
	Modbus  Modbus
	Sink    publisher.SinkConfig
	Devices []*device.Device
}

type rawDoc struct {
	Modbus    rawModbus                   `toml:"modbus"`
	InfluxDB  *rawInfluxV1                `toml:"influxdb"`
	InfluxDB2 *rawInfluxV2                `toml:"influxdb2"`
	Templates map[string]rawDeviceFields  `toml:"templates"`
	Devices   []rawDeviceSection          `toml:"devices"`
}

type rawModbus struct {
	Hostname string `toml:"hostname"`
	Port     int    `toml:"port"`
	Timeout  string `toml:"timeout"`
}

type rawInfluxV1 struct {
	BaseURL string `toml:"base_url"`
	DB      string `toml:"db"`
	User    string `toml:"user"`
	Pass    string `toml:"pass"`
}

type rawInfluxV2 struct {
	BaseURL string `toml:"base_url"`
	Org     string `toml:"org"`
	Bucket  string `toml:"bucket"`
	Token   string `toml:"token"`
}

// rawDeviceFields is shared shape between a [templates.<name>] entry and a
// [[devices]] entry: every field is optional so the XOR-merge rule can
// tell "absent" from "present but zero".
type rawDeviceFields struct {
	ID             *int64            `toml:"id"`
	ScanInterval   *string           `toml:"scan_interval"`
	Tags           map[string]string `toml:"tags"`
	InputRegisters []interface{}     `toml:"input_registers"`
}

type rawDeviceSection struct {
	Template string `toml:"template"`
	rawDeviceFields
}

// Load reads path, merges templates into device sections, and builds the
// immutable Device set plus Modbus/sink configuration.
func Load(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: "ConfigMissing", Field: "path", Err: err}
	}

	var doc rawDoc
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil, &Error{Kind: "ConfigMissing", Field: "document", Err: err}
	}

	modbusCfg, err := buildModbus(doc.Modbus)
	if err != nil {
		return nil, err
	}

	sink, err := buildSink(doc.InfluxDB, doc.InfluxDB2)
	if err != nil {
		return nil, err
	}

	devices := make([]*device.Device, 0, len(doc.Devices))
	for _, section := range doc.Devices {
		d, err := buildDevice(doc.Templates, section)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}

	return &Result{Modbus: modbusCfg, Sink: sink, Devices: devices}, nil
}

func buildModbus(raw rawModbus) (Modbus, error) {
	if raw.Hostname == "" {
		return Modbus{}, &Error{Kind: "ConfigMissing", Field: "modbus.hostname", Err: fmt.Errorf("required")}
	}
	timeout, err := time.ParseDuration(raw.Timeout)
	if err != nil {
		return Modbus{}, &Error{Kind: "ConfigBadDuration", Field: "modbus.timeout", Err: err}
	}
	return Modbus{Hostname: raw.Hostname, Port: raw.Port, Timeout: timeout}, nil
}

func buildSink(v1 *rawInfluxV1, v2 *rawInfluxV2) (publisher.SinkConfig, error) {
	switch {
	case v1 != nil && v2 != nil:
		return publisher.SinkConfig{}, &Error{Kind: "ConfigConflict", Field: "influxdb/influxdb2", Err: fmt.Errorf("exactly one sink block is allowed")}
	case v1 != nil:
		return publisher.SinkConfig{
			Variant: publisher.SinkV1,
			BaseURL: v1.BaseURL,
			DB:      v1.DB,
			User:    v1.User,
			Pass:    v1.Pass,
		}, nil
	case v2 != nil:
		return publisher.SinkConfig{
			Variant: publisher.SinkV2,
			BaseURL: v2.BaseURL,
			Org:     v2.Org,
			Bucket:  v2.Bucket,
			Token:   v2.Token,
		}, nil
	default:
		return publisher.SinkConfig{}, &Error{Kind: "ConfigMissing", Field: "influxdb/influxdb2", Err: fmt.Errorf("one sink block is required")}
	}
}

func buildDevice(templates map[string]rawDeviceFields, section rawDeviceSection) (*device.Device, error) {
	var scaffold rawDeviceFields
	if section.Template != "" {
		t, ok := templates[section.Template]
		if !ok {
			return nil, &Error{Kind: "ConfigMissing", Field: "template", Device: section.Template, Err: fmt.Errorf("template %q not found", section.Template)}
		}
		scaffold = t
	}

	deviceName := section.Template
	if deviceName == "" {
		deviceName = "(untemplated)"
	}

	id, err := mergeScalar(scaffold.ID, section.ID, "id", deviceName)
	if err != nil {
		return nil, err
	}
	if id < 0 || id > 255 {
		return nil, &Error{Kind: "ConfigConflict", Field: "id", Device: deviceName, Err: fmt.Errorf("unit id %d out of range [0,255]", id)}
	}

	scanIntervalStr, err := mergeScalar(scaffold.ScanInterval, section.ScanInterval, "scan_interval", deviceName)
	if err != nil {
		return nil, err
	}
	scanInterval, err := time.ParseDuration(scanIntervalStr)
	if err != nil {
		return nil, &Error{Kind: "ConfigBadDuration", Field: "scan_interval", Device: deviceName, Err: err}
	}

	tags := mergeTags(scaffold.Tags, section.Tags)
	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	tagList := make([]lineprotocol.Tag, 0, len(tags))
	for _, k := range tagKeys {
		tagList = append(tagList, lineprotocol.Tag{Key: k, Value: tags[k]})
	}

	rawRegisters := append(append([]interface{}{}, scaffold.InputRegisters...), section.InputRegisters...)
	registers, err := parseRegisters(rawRegisters, deviceName)
	if err != nil {
		return nil, err
	}

	return &device.Device{
		ID:           uint8(id),
		ScanInterval: scanInterval,
		Tags:         tagList,
		Plan:         plan.New(registers),
	}, nil
}

// mergeScalar implements the XOR-merge rule: a scalar field must be
// present in exactly one of {template, device section}.
func mergeScalar[T any](templateVal, deviceVal *T, field, deviceName string) (T, error) {
	var zero T
	switch {
	case templateVal != nil && deviceVal != nil:
		return zero, &Error{Kind: "ConfigConflict", Field: field, Device: deviceName, Err: fmt.Errorf("set in both template and device section")}
	case templateVal == nil && deviceVal == nil:
		return zero, &Error{Kind: "ConfigConflict", Field: field, Device: deviceName, Err: fmt.Errorf("not set in template or device section")}
	case templateVal != nil:
		return *templateVal, nil
	default:
		return *deviceVal, nil
	}
}

func mergeTags(scaffold, section map[string]string) map[string]string {
	merged := make(map[string]string, len(scaffold)+len(section))
	for k, v := range scaffold {
		merged[k] = v
	}
	for k, v := range section {
		merged[k] = v
	}
	return merged
}

func parseRegisters(raw []interface{}, deviceName string) ([]plan.Register, error) {
	registers := make([]plan.Register, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case int64:
			registers = append(registers, plan.Register{
				Address:  uint16(v),
				Name:     fmt.Sprintf("input_register_%d", v),
				DataType: decode.U16,
				Scaling:  1.0,
			})
		case map[string]interface{}:
			r, err := parseRegisterTable(v, deviceName)
			if err != nil {
				return nil, err
			}
			registers = append(registers, r)
		default:
			return nil, &Error{Kind: "ConfigBadRegisterType", Field: "input_registers", Device: deviceName, Err: fmt.Errorf("unsupported register entry %T", entry)}
		}
	}
	return registers, nil
}

func parseRegisterTable(v map[string]interface{}, deviceName string) (plan.Register, error) {
	addrVal, ok := v["addr"]
	if !ok {
		return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "addr", Device: deviceName, Err: fmt.Errorf("required")}
	}
	addr, ok := toInt64(addrVal)
	if !ok {
		return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "addr", Device: deviceName, Err: fmt.Errorf("not an integer")}
	}

	name, _ := v["name"].(string)
	if name == "" {
		return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "name", Device: deviceName, Err: fmt.Errorf("required")}
	}

	dataType := decode.U16
	if raw, ok := v["data_type"]; ok {
		s, _ := raw.(string)
		dt, err := decode.Parse(s)
		if err != nil {
			return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "data_type", Device: deviceName, Err: err}
		}
		dataType = dt
	}

	scaling := 1.0
	if raw, ok := v["scaling"]; ok {
		f, ok := toFloat64(raw)
		if !ok {
			return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "scaling", Device: deviceName, Err: fmt.Errorf("not a number")}
		}
		scaling = f
	}

	var tags map[string]string
	if raw, ok := v["tags"]; ok {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "tags", Device: deviceName, Err: fmt.Errorf("not a table")}
		}
		tags = make(map[string]string, len(m))
		for k, tv := range m {
			s, ok := tv.(string)
			if !ok {
				return plan.Register{}, &Error{Kind: "ConfigBadRegisterType", Field: "tags." + k, Device: deviceName, Err: fmt.Errorf("not a string")}
			}
			tags[k] = s
		}
	}

	return plan.Register{
		Address:  uint16(addr),
		Name:     name,
		DataType: dataType,
		Scaling:  scaling,
		Tags:     tags,
	}, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
