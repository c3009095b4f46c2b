package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// DocumentConfig describes the served collection.
type DocumentConfig struct {
	Title      string
	Version    string
	BasePath   string
	Resource   string
	IDProperty string
	Secured    bool
}

// Document builds the OpenAPI 3 description of the REST collection.
func Document(cfg DocumentConfig) *openapi3.T {
	title := strings.TrimSpace(cfg.Title)
	if title == "" {
		title = "endpointstore sandbox"
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = "0.0.0"
	}
	idProperty := cfg.IDProperty
	if idProperty == "" {
		idProperty = "id"
	}

	record := openapi3.NewObjectSchema().WithAnyAdditionalProperties()
	record.Description = fmt.Sprintf("A record identified by %q.", idProperty)
	list := openapi3.NewObjectSchema().
		WithProperty("items", openapi3.NewArraySchema().WithItems(record)).
		WithProperty("count", openapi3.NewIntegerSchema()).
		WithProperty("nextPageToken", openapi3.NewStringSchema())
	errorItem := openapi3.NewObjectSchema().
		WithProperty("domain", openapi3.NewStringSchema()).
		WithProperty("reason", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	envelope := openapi3.NewObjectSchema().WithProperty("error", openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewIntegerSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("errors", openapi3.NewArraySchema().WithItems(errorItem)))

	ok := func(description string, schema *openapi3.Schema) *openapi3.Responses {
		return openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema),
			}),
			openapi3.WithName("default", openapi3.NewResponse().
				WithDescription("Error envelope").
				WithJSONSchema(envelope)),
		)
	}
	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()),
	}
	body := &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(record),
	}

	listOp := operation("list", "List one page of records", ok("A page of records", list))
	listOp.Parameters = openapi3.Parameters{
		{Value: openapi3.NewQueryParameter("offset").WithSchema(openapi3.NewIntegerSchema().WithMin(0))},
		{Value: openapi3.NewQueryParameter("limit").WithSchema(openapi3.NewIntegerSchema().WithMin(0))},
		{Value: openapi3.NewQueryParameter("order").WithSchema(openapi3.NewStringSchema())},
	}
	insertOp := operation("insert", "Create a record", ok("The created record", record))
	insertOp.RequestBody = body
	updateOp := operation("update", "Replace a record", ok("The stored record", record))
	updateOp.RequestBody = body
	getOp := operation("get", "Fetch a record", ok("The record", record))
	getOp.Parameters = openapi3.Parameters{idParam}
	removeOp := operation("remove", "Delete a record", ok("Empty object", openapi3.NewObjectSchema()))
	removeOp.Parameters = openapi3.Parameters{idParam}

	collection := strings.TrimRight(cfg.BasePath, "/") + "/" + strings.Trim(cfg.Resource, "/")
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths: openapi3.NewPaths(
			openapi3.WithPath(collection, &openapi3.PathItem{Get: listOp, Post: insertOp, Put: updateOp}),
			openapi3.WithPath(collection+"/{id}", &openapi3.PathItem{Get: getOp, Delete: removeOp}),
		),
	}
	if cfg.Secured {
		doc.Components = &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearer": &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		}
		doc.Security = *openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate("bearer"))
	}
	return doc
}

func operation(id, summary string, responses *openapi3.Responses) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{"records"}
	op.Responses = responses
	return op
}

// DocumentHandler validates doc once and serves it as JSON.
func DocumentHandler(ctx context.Context, doc *openapi3.T) (http.Handler, error) {
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("sandbox: invalid openapi document: %w", err)
	}
	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("sandbox: encode openapi document: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}), nil
}
