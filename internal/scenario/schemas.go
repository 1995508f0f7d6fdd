package scenario

import "github.com/wesleyorama2/gabsload/pkg/jsonschema"

// Response shapes the journeys depend on. Only fields a later step reads
// are required.
var (
	vendorListSchema = jsonschema.MustCompile("vendor-list.json", `{
		"type": "object",
		"required": ["vendors"],
		"properties": {
			"vendors": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["id"],
					"properties": {
						"id": {"type": "string"},
						"name": {"type": "string"}
					}
				}
			}
		}
	}`)

	menuSchema = jsonschema.MustCompile("menu.json", `{
		"type": "object",
		"required": ["menu"],
		"properties": {
			"menu": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["id", "price"],
					"properties": {
						"id": {"type": "string"},
						"name": {"type": "string"},
						"price": {"type": "number", "minimum": 0}
					}
				}
			}
		}
	}`)

	orderSchema = jsonschema.MustCompile("order.json", `{
		"type": "object",
		"required": ["order"],
		"properties": {
			"order": {
				"type": "object",
				"required": ["id", "status", "total", "items"],
				"properties": {
					"id": {"type": "string"},
					"status": {"type": "string"},
					"total": {"type": "number"},
					"items": {"type": "array"}
				}
			}
		}
	}`)

	trackingSchema = jsonschema.MustCompile("tracking.json", `{
		"type": "object",
		"required": ["tracking"],
		"properties": {
			"tracking": {
				"type": "object",
				"required": ["orderId", "status"],
				"properties": {
					"orderId": {"type": "string"},
					"status": {"type": "string"}
				}
			}
		}
	}`)

	assignmentSchema = jsonschema.MustCompile("assignment.json", `{
		"type": "object",
		"required": ["assignment"],
		"properties": {
			"assignment": {
				"type": "object",
				"required": ["id", "orderId", "status"],
				"properties": {
					"id": {"type": "string"},
					"orderId": {"type": "string"},
					"status": {"type": "string"}
				}
			}
		}
	}`)
)
