package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalab/strata/internal/model"
	"github.com/stratalab/strata/internal/store"
)

func openDB(t *testing.T, dir string) *store.Database {
	t.Helper()
	storage, err := store.NewFileStorage(dir)
	require.NoError(t, err)
	db, err := store.Open(storage, model.Registry())
	require.NoError(t, err)
	return db
}

func TestProject_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	db1 := openDB(t, dir)
	project := model.NewProject("analysis", "Ada L.", "Monthly metrics")
	require.NoError(t, db1.Add(project, model.ProjectOID))
	require.NoError(t, db1.Commit())

	db2 := openDB(t, dir)
	obj, err := db2.Get(model.ProjectOID)
	require.NoError(t, err)
	loaded, ok := obj.(*model.Project)
	require.True(t, ok)

	name, err := loaded.Name()
	require.NoError(t, err)
	assert.Equal(t, "analysis", name)
	creator, err := loaded.Creator()
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", creator)
	description, err := loaded.Description()
	require.NoError(t, err)
	assert.Equal(t, "Monthly metrics", description)
}

func TestProject_SetDescriptionPersists(t *testing.T) {
	dir := t.TempDir()

	db1 := openDB(t, dir)
	require.NoError(t, db1.Add(model.NewProject("analysis", "", ""), model.ProjectOID))
	require.NoError(t, db1.Commit())

	db2 := openDB(t, dir)
	obj, err := db2.Get(model.ProjectOID)
	require.NoError(t, err)
	project := obj.(*model.Project)
	require.NoError(t, project.SetDescription("updated"))
	require.NoError(t, db2.Commit())

	db3 := openDB(t, dir)
	obj, err = db3.Get(model.ProjectOID)
	require.NoError(t, err)
	description, err := obj.(*model.Project).Description()
	require.NoError(t, err)
	assert.Equal(t, "updated", description)
}

func TestDataset_RoundTripWithFiles(t *testing.T) {
	dir := t.TempDir()

	db1 := openDB(t, dir)
	idx, err := db1.AddIndex(model.IndexDatasets, model.TagDataset, "name", "")
	require.NoError(t, err)

	added := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	dataset := model.NewDataset("measurements", "Raw measurements", "lab", "2024")
	require.NoError(t, db1.Register(dataset))
	require.NoError(t, dataset.AddFile(model.NewDatasetFile("data/jan.csv", "data/jan.csv", 2048, added)))
	require.NoError(t, dataset.AddFile(model.NewDatasetFile("data/feb.csv", "data/feb.csv", 4096, added)))
	require.NoError(t, idx.Add(dataset))
	require.NoError(t, db1.Commit())

	db2 := openDB(t, dir)
	idx2, err := db2.Index(model.IndexDatasets)
	require.NoError(t, err)
	obj, err := idx2.Get("measurements")
	require.NoError(t, err)
	loaded, ok := obj.(*model.Dataset)
	require.True(t, ok)

	title, err := loaded.Title()
	require.NoError(t, err)
	assert.Equal(t, "Raw measurements", title)

	keywords, err := loaded.Keywords()
	require.NoError(t, err)
	assert.Equal(t, store.Tuple{"lab", "2024"}, keywords)

	files, err := loaded.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "data/jan.csv", files[0].Path())
	assert.Equal(t, int64(2048), files[0].Size())
	assert.True(t, files[0].AddedAt().Equal(added))
}

func TestDatasetFile_SharedAcrossDatasets(t *testing.T) {
	dir := t.TempDir()

	db1 := openDB(t, dir)
	shared := model.NewDatasetFile("data/shared.csv", "data/shared.csv", 512, time.Now())

	a := model.NewDataset("alpha", "")
	require.NoError(t, db1.Register(a))
	require.NoError(t, a.AddFile(shared))
	b := model.NewDataset("beta", "")
	require.NoError(t, db1.Register(b))
	require.NoError(t, b.AddFile(shared))
	require.NoError(t, db1.Commit())

	db2 := openDB(t, dir)
	objA, err := db2.GetByID(model.DatasetDomainID("alpha"))
	require.NoError(t, err)
	objB, err := db2.GetByID(model.DatasetDomainID("beta"))
	require.NoError(t, err)

	filesA, err := objA.(*model.Dataset).Files()
	require.NoError(t, err)
	filesB, err := objB.(*model.Dataset).Files()
	require.NoError(t, err)
	require.Len(t, filesA, 1)
	require.Len(t, filesB, 1)
	assert.Same(t, filesA[0], filesB[0], "one logical file must load as one instance")
}

func TestDataset_DerivationChain(t *testing.T) {
	dir := t.TempDir()

	db1 := openDB(t, dir)
	parent := model.NewDataset("raw", "Raw")
	require.NoError(t, db1.Register(parent))
	child := model.NewDataset("clean", "Cleaned")
	require.NoError(t, db1.Register(child))
	require.NoError(t, child.SetDerivedFrom(parent))
	require.NoError(t, db1.Commit())

	db2 := openDB(t, dir)
	obj, err := db2.GetByID(model.DatasetDomainID("clean"))
	require.NoError(t, err)
	loaded := obj.(*model.Dataset)

	from, err := loaded.DerivedFrom()
	require.NoError(t, err)
	require.NotNil(t, from)
	name, err := from.Name()
	require.NoError(t, err)
	assert.Equal(t, "raw", name)
}

func TestActivity_LinksPlanAndDatasets(t *testing.T) {
	dir := t.TempDir()

	db1 := openDB(t, dir)
	plan := model.NewPlan("clean-data", "python clean.py")
	require.NoError(t, db1.Register(plan))

	generated := model.NewDataset("clean", "Cleaned")
	require.NoError(t, db1.Register(generated))

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(42 * time.Second)
	activity := model.NewActivity("run-0001", plan, started, ended)
	require.NoError(t, db1.Register(activity))
	require.NoError(t, activity.AddGenerated(generated))
	require.NoError(t, db1.Commit())

	db2 := openDB(t, dir)
	obj, err := db2.GetByID(model.ActivityDomainID("run-0001"))
	require.NoError(t, err)
	loaded := obj.(*model.Activity)

	gotPlan, err := loaded.Plan()
	require.NoError(t, err)
	require.NotNil(t, gotPlan)
	command, err := gotPlan.Command()
	require.NoError(t, err)
	assert.Equal(t, "python clean.py", command)

	startedAt, err := loaded.StartedAt()
	require.NoError(t, err)
	assert.True(t, startedAt.Equal(started))
	endedAt, err := loaded.EndedAt()
	require.NoError(t, err)
	assert.True(t, endedAt.Equal(ended))

	gen, err := loaded.Generated()
	require.NoError(t, err)
	require.Len(t, gen, 1)
	name, err := gen[0].Name()
	require.NoError(t, err)
	assert.Equal(t, "clean", name)
}

func TestRegistry_CoversAllDomainTags(t *testing.T) {
	r := model.Registry()
	// Registering any domain tag again must collide with the existing entry.
	err := r.RegisterObject(model.TagDataset, nil)
	assert.Error(t, err)
	err = r.RegisterValue(model.TagDatasetFile, nil)
	assert.Error(t, err)
}
