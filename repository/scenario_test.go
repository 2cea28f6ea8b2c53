package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/entity"
	"github.com/gaborage/go-bricks-data/query"
	"github.com/gaborage/go-bricks-data/transaction"
)

type writer struct {
	ID   int64  `db:"id,id,generated"`
	Name string `db:"name"`
}

type novel struct {
	ID     int64   `db:"id,id,generated"`
	Title  string  `db:"title"`
	Pages  *int    `db:"pages"`
	Writer *writer `db:"writer_id,join=writer"`
}

func intPtr(n int) *int { return &n }

// runLibraryScenario drives every repository verb against a real database.
// ddl creates the writer and novel tables.
func runLibraryScenario(t *testing.T, factory types.ConnectionFactory, ddl ...string) {
	t.Helper()
	ctx := context.Background()
	tx := transaction.NewManager(factory, nil)
	ops := New(tx, nil)
	b := query.NewBuilder(factory.Metadata().Vendor)
	writers := entity.MustNew[*writer]("writer")
	novels := entity.MustNew[*novel]("novel")

	require.NoError(t, tx.WithConnection(ctx, func(ctx context.Context, conn types.Connection) error {
		for _, sql := range ddl {
			stmt, err := conn.CreateStatement(sql)
			if err != nil {
				return err
			}
			res, err := stmt.Execute(ctx)
			if err != nil {
				return err
			}
			_ = res.Close()
		}
		return nil
	}))

	insWriter, err := query.Insert(b, writers)
	require.NoError(t, err)
	insNovel, err := query.Insert(b, novels)
	require.NoError(t, err)

	herbert, ok, err := Persist(ctx, ops, insWriter, &writer{Name: "Frank Herbert"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NotZero(t, herbert.ID)

	saved, err := PersistAll(ctx, ops, insNovel, []*novel{
		{Title: "Dune", Pages: intPtr(412), Writer: herbert},
		{Title: "Dune Messiah", Pages: intPtr(256), Writer: herbert},
		{Title: "Untitled"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.NotEqual(t, saved[0].ID, saved[1].ID)
	assert.NotZero(t, saved[2].ID)

	join := query.Join{Path: "writer", Table: "writer"}
	byID, err := query.FindByID(b, novels, saved[0].ID, join)
	require.NoError(t, err)
	dune, ok, err := FindOne(ctx, ops, byID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Dune", dune.Title)
	require.NotNil(t, dune.Pages)
	assert.Equal(t, 412, *dune.Pages)
	require.NotNil(t, dune.Writer)
	assert.Equal(t, "Frank Herbert", dune.Writer.Name)

	all, err := query.FindAll(b, novels, join)
	require.NoError(t, err)
	list, err := FindAllList(ctx, ops, all)
	require.NoError(t, err)
	byTitle := map[string]*novel{}
	for _, n := range list {
		byTitle[n.Title] = n
	}
	require.Len(t, byTitle, 3)
	assert.Nil(t, byTitle["Untitled"].Writer)
	assert.Nil(t, byTitle["Untitled"].Pages)

	upd, err := query.Update(b, novels)
	require.NoError(t, err)
	dune.Title = "Dune (1965)"
	_, ok, err = Update(ctx, ops, upd, dune)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = Update(ctx, ops, upd, &novel{ID: -1, Title: "ghost"})
	require.NoError(t, err)
	assert.False(t, ok, "updating a missing row reports absence")

	del, err := query.Delete(b, novels)
	require.NoError(t, err)
	n, err := Delete(ctx, ops, del, byTitle["Untitled"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	exists, err := query.ExistsByID(b, novels, byTitle["Untitled"].ID)
	require.NoError(t, err)
	found, err := Exists(ctx, ops, exists)
	require.NoError(t, err)
	assert.False(t, found)

	bumped, err := ExecuteUpdate(ctx, ops, query.Scalar[int]("UPDATE novel SET pages = pages + 1 WHERE pages IS NOT NULL"))
	require.NoError(t, err)
	assert.Equal(t, 2, bumped)

	errAbort := errors.New("abort")
	err = tx.WithTransaction(ctx, transaction.DefaultDefinition(), func(ctx context.Context, _ *transaction.Status) error {
		if _, _, err := Persist(ctx, ops, insWriter, &writer{Name: "Nobody"}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	count, err := query.Count(b, writers)
	require.NoError(t, err)
	writersLeft, ok, err := FindOne(ctx, ops, count)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), writersLeft, "the aborted insert was rolled back")

	pages, err := FindAllList(ctx, ops, query.Scalar[int]("SELECT pages FROM novel"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{413, 257}, pages)
}
