// Package openapi describes the served HTTP API as an OpenAPI 3.1 document.
package openapi

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Collection is a content collection exposed under /api/{Name}.
type Collection struct {
	Name string
	// PublicRead allows anonymous list/get of published documents.
	PublicRead bool
	// PublicCreate allows anonymous POST (contact messages).
	PublicCreate bool
}

// DefaultCollections mirrors the routes mounted by the server.
var DefaultCollections = []Collection{
	{Name: "projects", PublicRead: true},
	{Name: "skills", PublicRead: true},
	{Name: "certificates", PublicRead: true},
	{Name: "messages", PublicCreate: true},
}

// Generate builds the API description.
func Generate(version, baseURL, cookieName string, collections []Collection) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Folio API",
			Description: "Portfolio content API with admin session authentication.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Components.SecuritySchemes["cookieAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "cookie",
			Name: cookieName,
		},
	}

	addSchemas(doc)
	doc.Paths = openapi3.NewPaths()
	addAuthPaths(doc)
	for _, c := range collections {
		addCollectionPaths(doc, c)
	}
	addSystemPaths(doc)
	return doc
}

// JSON renders Generate's output.
func JSON(version, baseURL, cookieName string) ([]byte, error) {
	return json.Marshal(Generate(version, baseURL, cookieName, DefaultCollections))
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func str() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
}

func object(required []string, props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Required:   required,
			Properties: props,
		},
	}
}

// envelopeOf wraps a data schema in the success envelope.
func envelopeOf(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	props := openapi3.Schemas{
		"status":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: []interface{}{"success"}}},
		"message": str(),
	}
	if data != nil {
		props["data"] = data
	}
	return object([]string{"status"}, props)
}

func addSchemas(doc *openapi3.T) {
	s := doc.Components.Schemas

	s["ErrorResponse"] = object([]string{"status", "message"}, openapi3.Schemas{
		"status":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: []interface{}{"error"}}},
		"message": str(),
	})

	dateTime := &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
	s["Admin"] = object([]string{"id", "name", "email", "createdAt"}, openapi3.Schemas{
		"id":          str(),
		"name":        str(),
		"email":       &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithFormat("email")},
		"lastLoginAt": dateTime,
		"createdAt":   dateTime,
		"updatedAt":   dateTime,
	})
	s["Document"] = object([]string{"id", "collection", "data", "published"}, openapi3.Schemas{
		"id":         str(),
		"collection": str(),
		"data":       &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		"published":  &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()},
		"createdAt":  dateTime,
		"updatedAt":  dateTime,
	})
	s["ListMeta"] = object(nil, openapi3.Schemas{
		"count":  &openapi3.SchemaRef{Value: openapi3.NewInt32Schema()},
		"total":  &openapi3.SchemaRef{Value: openapi3.NewInt32Schema()},
		"limit":  &openapi3.SchemaRef{Value: openapi3.NewInt32Schema()},
		"offset": &openapi3.SchemaRef{Value: openapi3.NewInt32Schema()},
	})
	s["Session"] = object([]string{"admin", "token"}, openapi3.Schemas{
		"admin": ref("Admin"),
		"token": str(),
	})

	s["LoginRequest"] = object([]string{"email", "password"}, openapi3.Schemas{
		"email":    str(),
		"password": str(),
	})
	s["RegisterRequest"] = object([]string{"name", "email", "password"}, openapi3.Schemas{
		"name":     &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMinLength(2).WithMaxLength(50)},
		"email":    str(),
		"password": &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMinLength(6)},
	})
	s["ProfileRequest"] = object(nil, openapi3.Schemas{
		"name":  str(),
		"email": str(),
	})
	s["PasswordRequest"] = object([]string{"currentPassword", "newPassword"}, openapi3.Schemas{
		"currentPassword": str(),
		"newPassword":     &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMinLength(6)},
	})
	s["MessageRequest"] = object([]string{"name", "email", "message"}, openapi3.Schemas{
		"name":    str(),
		"email":   str(),
		"subject": str(),
		"message": &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMinLength(10).WithMaxLength(1000)},
	})
}

var secured = &openapi3.SecurityRequirements{
	{"bearerAuth": {}},
	{"cookieAuth": {}},
}

type opSpec struct {
	tag      string
	summary  string
	id       string
	auth     bool
	body     *openapi3.SchemaRef
	status   string
	data     *openapi3.SchemaRef
	errCodes []string
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"404": "Not found",
	"429": "Too many requests",
	"500": "Internal server error",
}

func operation(o opSpec) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:        []string{o.tag},
		Summary:     o.summary,
		OperationID: o.id,
		Responses:   openapi3.NewResponses(),
	}
	if o.auth {
		op.Security = secured
	}
	if o.body != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(o.body),
			},
		}
	}

	desc := "Success"
	op.Responses.Set(o.status, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(envelopeOf(o.data)),
		},
	})

	codes := o.errCodes
	if o.auth {
		codes = append(codes, "401")
	}
	codes = append(codes, "500")
	for _, code := range codes {
		d := errorDescriptions[code]
		op.Responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(ref("ErrorResponse")),
			},
		})
	}
	return op
}

func addAuthPaths(doc *openapi3.T) {
	const tag = "auth"
	adminData := object(nil, openapi3.Schemas{"admin": ref("Admin")})

	doc.Paths.Set("/api/admin/auth/login", &openapi3.PathItem{
		Post: operation(opSpec{tag: tag, summary: "Log in", id: "login",
			body: ref("LoginRequest"), status: "200", data: ref("Session"),
			errCodes: []string{"400", "401", "429"}}),
	})
	doc.Paths.Set("/api/admin/auth/register", &openapi3.PathItem{
		Post: operation(opSpec{tag: tag, summary: "Register another admin", id: "register", auth: true,
			body: ref("RegisterRequest"), status: "201", data: ref("Session"),
			errCodes: []string{"400"}}),
	})
	doc.Paths.Set("/api/admin/auth/me", &openapi3.PathItem{
		Get: operation(opSpec{tag: tag, summary: "Current admin", id: "me", auth: true,
			status: "200", data: adminData, errCodes: []string{"404"}}),
	})
	doc.Paths.Set("/api/admin/auth/logout", &openapi3.PathItem{
		Post: operation(opSpec{tag: tag, summary: "Log out", id: "logout", auth: true, status: "200"}),
	})
	doc.Paths.Set("/api/admin/auth/profile", &openapi3.PathItem{
		Put: operation(opSpec{tag: tag, summary: "Update profile", id: "updateProfile", auth: true,
			body: ref("ProfileRequest"), status: "200", data: adminData,
			errCodes: []string{"400", "404"}}),
	})
	doc.Paths.Set("/api/admin/auth/password", &openapi3.PathItem{
		Put: operation(opSpec{tag: tag, summary: "Change password", id: "updatePassword", auth: true,
			body: ref("PasswordRequest"), status: "200",
			data:     object([]string{"token"}, openapi3.Schemas{"token": str()}),
			errCodes: []string{"400", "404"}}),
	})
	doc.Paths.Set("/api/admin/auth/verify", &openapi3.PathItem{
		Get: operation(opSpec{tag: tag, summary: "Verify token", id: "verify", auth: true,
			status: "200", data: adminData}),
	})
}

func addCollectionPaths(doc *openapi3.T, c Collection) {
	listData := object(nil, openapi3.Schemas{
		"items": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref("Document")}},
		"meta":  ref("ListMeta"),
	})
	docData := object(nil, openapi3.Schemas{"document": ref("Document")})
	anyObject := &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}

	createBody := anyObject
	if c.PublicCreate {
		createBody = ref("MessageRequest")
	}

	list := operation(opSpec{tag: c.Name, summary: fmt.Sprintf("List %s", c.Name), id: "list_" + c.Name,
		auth: !c.PublicRead, status: "200", data: listData})
	list.Parameters = openapi3.Parameters{
		&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("limit").WithSchema(openapi3.NewInt32Schema())},
		&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("offset").WithSchema(openapi3.NewInt32Schema())},
	}

	doc.Paths.Set("/api/"+c.Name, &openapi3.PathItem{
		Get: list,
		Post: operation(opSpec{tag: c.Name, summary: fmt.Sprintf("Create %s entry", c.Name), id: "create_" + c.Name,
			auth: !c.PublicCreate, body: createBody, status: "201", data: docData, errCodes: []string{"400"}}),
	})

	item := &openapi3.PathItem{
		Get: operation(opSpec{tag: c.Name, summary: fmt.Sprintf("Get %s entry", c.Name), id: "get_" + c.Name,
			auth: !c.PublicRead, status: "200", data: docData, errCodes: []string{"404"}}),
		Delete: operation(opSpec{tag: c.Name, summary: fmt.Sprintf("Delete %s entry", c.Name), id: "delete_" + c.Name,
			auth: true, status: "200", errCodes: []string{"404"}}),
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())},
		},
	}
	if !c.PublicCreate {
		item.Put = operation(opSpec{tag: c.Name, summary: fmt.Sprintf("Replace %s entry", c.Name), id: "update_" + c.Name,
			auth: true, body: anyObject, status: "200", data: docData, errCodes: []string{"400", "404"}})
	}
	doc.Paths.Set("/api/"+c.Name+"/{id}", item)
}

func addSystemPaths(doc *openapi3.T) {
	docData := object(nil, openapi3.Schemas{"document": ref("Document")})

	doc.Paths.Set("/api/settings", &openapi3.PathItem{
		Get: operation(opSpec{tag: "settings", summary: "Site settings", id: "getSettings", status: "200", data: docData}),
		Put: operation(opSpec{tag: "settings", summary: "Replace site settings", id: "putSettings", auth: true,
			body: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
			status: "200", data: docData, errCodes: []string{"400"}}),
	})
	doc.Paths.Set("/api/admin/stats", &openapi3.PathItem{
		Get: operation(opSpec{tag: "admin", summary: "Dashboard counts", id: "stats", auth: true, status: "200",
			data: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}}),
	})
	doc.Paths.Set("/health", &openapi3.PathItem{
		Get: operation(opSpec{tag: "system", summary: "Liveness", id: "health", status: "200",
			data: object(nil, openapi3.Schemas{"timestamp": &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}})}),
	})
}
