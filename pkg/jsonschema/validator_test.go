package jsonschema

import (
	"strings"
	"sync"
	"testing"
)

const vendorListSchema = `{
	"type": "object",
	"properties": {
		"vendors": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"id": { "type": "string" },
					"name": { "type": "string" }
				},
				"required": ["id"]
			}
		}
	},
	"required": ["vendors"]
}`

func TestSchema_Validate(t *testing.T) {
	schema, err := Compile("vendors.json", vendorListSchema)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "Valid vendor list",
			body: `{"vendors": [{"id": "v1", "name": "Pizza Palace"}]}`,
		},
		{
			name:    "Empty vendor list",
			body:    `{"vendors": []}`,
			wantErr: true,
		},
		{
			name:    "Missing vendors",
			body:    `{"restaurants": []}`,
			wantErr: true,
		},
		{
			name:    "Vendor without id",
			body:    `{"vendors": [{"name": "Taco Town"}]}`,
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			body:    `{ invalid json }`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_ValidationErrors(t *testing.T) {
	tests := []struct {
		name           string
		schema         string
		body           string
		expectedErrors []string // Substrings that should be in the error message
	}{
		{
			name: "Missing required property",
			schema: `{
				"type": "object",
				"required": ["token"]
			}`,
			body:           `{}`,
			expectedErrors: []string{"token", "missing properties"},
		},
		{
			name: "Wrong type",
			schema: `{
				"type": "object",
				"properties": {
					"total": { "type": "number" }
				}
			}`,
			body:           `{"total": "12.50"}`,
			expectedErrors: []string{"total", "number", "string"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := MustCompile("test.json", tt.schema)

			err := schema.Validate([]byte(tt.body))
			errs, ok := err.(ValidationErrors)
			if !ok || len(errs) == 0 {
				t.Fatalf("Expected ValidationErrors, got %v", err)
			}

			msg := errs.Error()
			for _, want := range tt.expectedErrors {
				if !strings.Contains(msg, want) {
					t.Errorf("Expected error to contain %q, got %q", want, msg)
				}
			}
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	if _, err := Compile("bad.json", `{"type": "invalid-type"}`); err == nil {
		t.Error("Expected error for invalid schema, got nil")
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected MustCompile to panic")
		}
	}()
	MustCompile("bad.json", `{"type": `)
}

func TestSchema_ConcurrentValidate(t *testing.T) {
	schema := MustCompile("vendors.json", vendorListSchema)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- schema.Validate([]byte(`{"vendors": [{"id": "v1"}]}`))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "" {
		t.Errorf("Expected empty message, got %q", empty.Error())
	}
}
