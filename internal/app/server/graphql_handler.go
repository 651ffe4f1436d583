package server

import (
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"streamgate/internal/database"
	"streamgate/internal/jobs/runtime"
)

// graphqlHandler exposes a read-only admin query surface next to the REST
// endpoints, for dashboards that want to shape their own responses.
func (s *Server) graphqlHandler() http.Handler {
	proxyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Proxy",
		Fields: graphql.Fields{
			"id":                  &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"address":             &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"protocol":            &graphql.Field{Type: graphql.String},
			"status":              &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"successCount":        &graphql.Field{Type: graphql.Int},
			"failureCount":        &graphql.Field{Type: graphql.Int},
			"consecutiveFailures": &graphql.Field{Type: graphql.Int},
			"latencyMs":           &graphql.Field{Type: graphql.Float},
		},
	})

	sourceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Source",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"priority":     &graphql.Field{Type: graphql.Int},
			"enabled":      &graphql.Field{Type: graphql.Boolean},
			"status":       &graphql.Field{Type: graphql.String},
			"channelCount": &graphql.Field{Type: graphql.Int},
		},
	})

	channelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Channel",
		Fields: graphql.Fields{
			"slug": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name": &graphql.Field{Type: graphql.String},
			"urls": &graphql.Field{Type: graphql.Int},
		},
	})

	instanceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Instance",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":   &graphql.Field{Type: graphql.String},
			"region": &graphql.Field{Type: graphql.String},
			"port":   &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"proxies": &graphql.Field{
				Type: graphql.NewList(proxyType),
				Resolve: func(graphql.ResolveParams) (any, error) {
					snapshots := s.registry.Snapshots()
					result := make([]map[string]any, 0, len(snapshots))
					for _, proxy := range snapshots {
						result = append(result, map[string]any{
							"id":                  proxy.ID,
							"address":             proxy.Address(),
							"protocol":            proxy.Protocol,
							"status":              proxy.Status,
							"successCount":        int(proxy.SuccessCount),
							"failureCount":        int(proxy.FailureCount),
							"consecutiveFailures": proxy.ConsecutiveFailures,
							"latencyMs":           proxy.LatencyMS,
						})
					}
					return result, nil
				},
			},
			"sources": &graphql.Field{
				Type: graphql.NewList(sourceType),
				Resolve: func(graphql.ResolveParams) (any, error) {
					sources, err := database.ListSources()
					if err != nil {
						return nil, err
					}
					result := make([]map[string]any, 0, len(sources))
					for _, source := range sources {
						result = append(result, map[string]any{
							"id":           source.ID,
							"name":         source.Name,
							"priority":     source.Priority,
							"enabled":      source.Enabled,
							"status":       source.Status,
							"channelCount": source.ChannelCount,
						})
					}
					return result, nil
				},
			},
			"channels": &graphql.Field{
				Type: graphql.NewList(channelType),
				Resolve: func(graphql.ResolveParams) (any, error) {
					entries := s.catalog.Channels()
					result := make([]map[string]any, 0, len(entries))
					for _, entry := range entries {
						result = append(result, map[string]any{
							"slug": entry.Slug,
							"name": entry.Name,
							"urls": len(entry.URLs),
						})
					}
					return result, nil
				},
			},
			"instances": &graphql.Field{
				Type: graphql.NewList(instanceType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if s.redis == nil {
						return []map[string]any{}, nil
					}
					instances, err := runtime.ListActiveInstances(p.Context, s.redis)
					if err != nil {
						return nil, err
					}
					result := make([]map[string]any, 0, len(instances))
					for _, instance := range instances {
						result = append(result, map[string]any{
							"id":     instance.ID,
							"name":   instance.Name,
							"region": instance.Region,
							"port":   instance.Port,
						})
					}
					return result, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		panic(err)
	}

	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: false,
	})
}
