package model

import "github.com/stratalab/strata/internal/store"

// Type tags for all strata domain records. Version suffix enables future
// schema migration without breaking the deserialization allow-list.
const (
	TagProject     = "strata/project/v1"
	TagDataset     = "strata/dataset/v1"
	TagDatasetFile = "strata/dataset-file/v1"
	TagPlan        = "strata/plan/v1"
	TagActivity    = "strata/activity/v1"
)

// Index names and attribute paths used by the CLI.
const (
	IndexDatasets   = "datasets"
	IndexPlans      = "plans"
	IndexActivities = "activities"
)

// Registry returns the closed type registry covering all strata domain
// records. This is the complete deserialization allow-list: a Database
// opened with it reconstructs these types and nothing else.
func Registry() *store.TypeRegistry {
	r := store.NewTypeRegistry()
	must(r.RegisterObject(TagProject, func() store.Object { return &Project{} }))
	must(r.RegisterObject(TagDataset, func() store.Object { return &Dataset{} }))
	must(r.RegisterObject(TagPlan, func() store.Object { return &Plan{} }))
	must(r.RegisterObject(TagActivity, func() store.Object { return &Activity{} }))
	must(r.RegisterValue(TagDatasetFile, datasetFileFromState))
	return r
}

// must panics on registration errors. Tags are package constants inside
// the trusted namespace, so a failure here is a programming mistake.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
