package observe_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/reliabilityfabric/fabric/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "example-service",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: false},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	// Missing service name triggers validation error
	cfg := observe.Config{
		ServiceName: "", // Empty - will fail validation
	}

	ctx := context.Background()
	_, err := observe.NewObserver(ctx, cfg)
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleConfig_Validate() {
	// Valid configuration
	cfg := observe.Config{
		ServiceName: "my-service",
		Tracing: observe.TracingConfig{
			Enabled:   true,
			Exporter:  "stdout",
			SamplePct: 0.5, // 50% sampling
		},
		Metrics: observe.MetricsConfig{
			Enabled:  true,
			Exporter: "prometheus",
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid:", err)
	} else {
		fmt.Println("Configuration is valid")
	}
	// Output:
	// Configuration is valid
}

func ExampleServiceMeta_SpanName() {
	// With a type
	meta := observe.ServiceMeta{
		Name: "create_issue",
		Type: "github",
	}
	fmt.Println(meta.SpanName())

	// Without a type
	meta2 := observe.ServiceMeta{
		Name: "read_file",
	}
	fmt.Println(meta2.SpanName())
	// Output:
	// fabric.exec.github.create_issue
	// fabric.exec.read_file
}

func ExampleServiceMeta_ServiceID() {
	// With explicit ID
	meta := observe.ServiceMeta{
		ID:   "custom:service:id",
		Name: "ignored",
		Type: "ignored",
	}
	fmt.Println(meta.ServiceID())

	// With a type (ID constructed)
	meta2 := observe.ServiceMeta{
		Name: "search",
		Type: "github",
	}
	fmt.Println(meta2.ServiceID())

	// Without a type
	meta3 := observe.ServiceMeta{
		Name: "read_file",
	}
	fmt.Println(meta3.ServiceID())
	// Output:
	// custom:service:id
	// github.search
	// read_file
}

func ExampleServiceMeta_Validate() {
	// Valid metadata
	meta := observe.ServiceMeta{
		Name: "create_issue",
		Type: "github",
	}
	if err := meta.Validate(); err != nil {
		fmt.Println("Invalid:", err)
	} else {
		fmt.Println("Valid service metadata")
	}

	// Invalid - missing name
	meta2 := observe.ServiceMeta{
		Type: "github",
	}
	if errors.Is(meta2.Validate(), observe.ErrMissingToolName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Valid service metadata
	// Caught: missing service name
}

func ExampleNewLoggerWithWriter() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf)

	ctx := context.Background()
	logger.Info(ctx, "application started", observe.Field{Key: "version", Value: "1.0.0"})

	// Output contains JSON with timestamp, level, msg, and version field
	fmt.Println("Logged message contains 'application started':", bytes.Contains(buf.Bytes(), []byte("application started")))
	// Output:
	// Logged message contains 'application started': true
}

func ExampleLogger_WithService() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf)

	meta := observe.ServiceMeta{
		Name: "search",
		Type: "github",
	}

	// Create service-scoped logger
	svcLogger := logger.WithService(meta)

	ctx := context.Background()
	svcLogger.Info(ctx, "service execution started")

	// Output contains service context
	output := buf.String()
	fmt.Println("Contains fabric.service.name:", bytes.Contains([]byte(output), []byte("fabric.service.name")))
	fmt.Println("Contains fabric.service.type:", bytes.Contains([]byte(output), []byte("fabric.service.type")))
	// Output:
	// Contains fabric.service.name: true
	// Contains fabric.service.type: true
}

func ExampleMiddleware_Wrap() {
	ctx := context.Background()

	// Create observer with disabled exporters for example
	cfg := observe.Config{
		ServiceName: "example",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     observe.LoggingConfig{Enabled: false},
	}
	obs, _ := observe.NewObserver(ctx, cfg)
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	// Create middleware
	mw, _ := observe.MiddlewareFromObserver(obs)

	// Define execution function
	execFn := func(ctx context.Context, svc observe.ServiceMeta, input any) (any, error) {
		return map[string]string{"status": "success"}, nil
	}

	// Wrap with observability
	wrapped := mw.Wrap(execFn)

	// Execute - automatically traced, metered, and logged
	result, err := wrapped(ctx, observe.ServiceMeta{
		Name: "example_service",
		Type: "demo",
	}, nil)

	if err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Printf("Result: %v\n", result)
	}
	// Output:
	// Result: map[status:success]
}

func ExampleParseLogLevel() {
	levels := []string{"debug", "info", "warn", "error", "unknown"}
	for _, s := range levels {
		level := observe.ParseLogLevel(s)
		fmt.Printf("%s -> %s\n", s, level)
	}
	// Output:
	// debug -> debug
	// info -> info
	// warn -> warn
	// error -> error
	// unknown -> info
}
