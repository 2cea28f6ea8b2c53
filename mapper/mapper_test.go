package mapper

import (
	"context"
	"database/sql/driver"
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-data/database/types"
	dbtest "github.com/gaborage/go-bricks-data/database/testing"
	"github.com/gaborage/go-bricks-data/entity"
	"github.com/gaborage/go-bricks-data/internal/reflection"
)

type publisher struct {
	ID   int64  `db:"id,id"`
	Name string `db:"name"`
}

type author struct {
	ID        int64      `db:"id,id,generated"`
	Name      string     `db:"name"`
	Publisher *publisher `db:"publisher_id,join=publisher"`
}

type book struct {
	ID     int64   `db:"id,id,generated"`
	Title  string  `db:"title"`
	Pages  *int    `db:"pages"`
	Author *author `db:"author_id,join=author"`
}

func TestReaderNullDefaults(t *testing.T) {
	r := NewReader()
	row := dbtest.NewRowSet("n").AddRow(nil).Row(0)
	col := Named("n")

	i, err := r.Int(row, col)
	require.NoError(t, err)
	assert.Zero(t, i)

	b, err := r.Bool(row, col)
	require.NoError(t, err)
	assert.False(t, b)

	f, err := r.Float64(row, col)
	require.NoError(t, err)
	assert.Zero(t, f)

	c, err := r.Rune(row, col)
	require.NoError(t, err)
	assert.Zero(t, c)

	s, err := r.String(row, col)
	require.NoError(t, err)
	assert.Nil(t, s)

	ts, err := r.Time(row, col)
	require.NoError(t, err)
	assert.Nil(t, ts)

	d, err := r.Decimal(row, col)
	require.NoError(t, err)
	assert.Nil(t, d)

	bs, err := r.Bytes(row, col)
	require.NoError(t, err)
	assert.Nil(t, bs)
}

func TestReaderConvertsDriverValues(t *testing.T) {
	r := NewReader()
	id := uuid.New()
	row := dbtest.NewRowSet("count", "price", "code", "flag", "letter", "created").
		AddRow(int32(7), "12.50", id.String(), int64(1), "xyz", "2024-03-01T10:00:00Z").
		Row(0)

	n, err := r.Int64(row, Named("COUNT"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	price, err := r.Decimal(row, Named("price"))
	require.NoError(t, err)
	assert.Zero(t, price.Cmp(big.NewRat(25, 2)))

	code, err := Read[uuid.UUID](r, row, At(2))
	require.NoError(t, err)
	assert.Equal(t, id, code)

	flag, err := r.Bool(row, At(3))
	require.NoError(t, err)
	assert.True(t, flag)

	letter, err := r.Rune(row, Named("letter"))
	require.NoError(t, err)
	assert.Equal(t, 'x', letter)

	created, err := r.Time(row, Named("created"))
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 2024, created.Year())
}

func TestReaderErrors(t *testing.T) {
	r := NewReader()
	row := dbtest.NewRowSet("n").AddRow("not a number").Row(0)

	_, err := r.Int(row, Named("n"))
	var dae *DataAccessError
	require.ErrorAs(t, err, &dae)
	assert.Equal(t, "n", dae.Column)
	assert.ErrorIs(t, err, reflection.ErrConversion)

	_, err = r.Int(row, Named("missing"))
	assert.ErrorIs(t, err, types.ErrColumnIndex)

	_, err = r.Int(row, At(3))
	assert.ErrorIs(t, err, types.ErrColumnIndex)
}

func TestReaderValue(t *testing.T) {
	r := NewReader()
	row := dbtest.NewRowSet("pages").AddRow(int64(320)).Row(0)

	v, err := r.Value(row, Named("pages"), reflect.TypeFor[*int]())
	require.NoError(t, err)
	assert.Equal(t, 320, *(v.Interface().(*int)))
}

// bindAndCapture binds values on a fake statement and returns the bindings
// the driver received.
func bindAndCapture(t *testing.T, bind func(*Binder, types.Statement)) []any {
	t.Helper()
	f := dbtest.NewFakeFactory(types.PostgreSQL)
	f.ExpectExec("INSERT")

	conn, err := f.Create(context.Background())
	require.NoError(t, err)
	stmt, err := conn.CreateStatement("INSERT INTO t VALUES ($1, $2)")
	require.NoError(t, err)

	bind(NewBinder(), stmt)
	_, err = stmt.Execute(context.Background())
	require.NoError(t, err)

	calls := f.Journal()
	last := calls[len(calls)-1]
	require.Len(t, last.Bindings, 1)
	return last.Bindings[0]
}

func TestBinderBindsTypedNull(t *testing.T) {
	var pages *int
	got := bindAndCapture(t, func(b *Binder, stmt types.Statement) {
		require.NoError(t, b.Bind(stmt, 0, pages, nil))
		require.NoError(t, b.Bind(stmt, 1, nil, reflect.TypeFor[*string]()))
	})

	assert.Equal(t, dbtest.NullValue{Type: reflect.TypeFor[int]()}, got[0])
	assert.Equal(t, dbtest.NullValue{Type: reflect.TypeFor[string]()}, got[1])
}

func TestBinderDereferencesAndNormalizesTime(t *testing.T) {
	pages := 12
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := bindAndCapture(t, func(b *Binder, stmt types.Statement) {
		require.NoError(t, b.Bind(stmt, 0, &pages, nil))
		require.NoError(t, b.Bind(stmt, 1, at, nil))
	})

	assert.Equal(t, 12, got[0])
	ts, ok := got[1].(time.Time)
	require.True(t, ok)
	assert.True(t, ts.Equal(at))
	assert.Equal(t, time.Local, ts.Location())
}

// isbn implements driver.Valuer on its pointer.
type isbn struct{ digits string }

func (i *isbn) Value() (driver.Value, error) { return "ISBN-" + i.digits, nil }

func TestBinderKeepsDecimalsAndPointerValuers(t *testing.T) {
	code := &isbn{digits: "42"}
	got := bindAndCapture(t, func(b *Binder, stmt types.Statement) {
		require.NoError(t, b.Bind(stmt, 0, big.NewRat(5, 2), nil))
		require.NoError(t, b.Bind(stmt, 1, big.NewRat(-7, 1), nil))
		require.NoError(t, b.Bind(stmt, 2, big.NewRat(1, 3), nil))
		require.NoError(t, b.Bind(stmt, 3, code, nil))
	})

	assert.Equal(t, "2.5", got[0])
	assert.Equal(t, "-7", got[1])
	assert.Equal(t, "0.333333333333333333", got[2])
	assert.Same(t, code, got[3])
}

func TestNullRoundTrip(t *testing.T) {
	// A NULL bound with its declared type reads back as the reader's null.
	var title *string
	got := bindAndCapture(t, func(b *Binder, stmt types.Statement) {
		require.NoError(t, b.Bind(stmt, 0, title, reflect.TypeFor[string]()))
	})
	_, isNull := got[0].(dbtest.NullValue)
	require.True(t, isNull)

	row := dbtest.NewRowSet("title").AddRow(nil).Row(0)
	back, err := NewReader().String(row, Named("title"))
	require.NoError(t, err)
	assert.Nil(t, back)
}

func TestEntityMapperSimpleAndStub(t *testing.T) {
	m := NewEntityMapper(entity.MustNew[*book]("book"), nil)
	rows := dbtest.NewRowSet("id", "title", "pages", "author_id").
		AddRow(int64(1), "Dune", nil, int64(9)).
		AddRow(int64(2), "Emma", int32(300), nil)

	first, err := m.Map(context.Background(), rows.Row(0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Dune", first.Title)
	assert.Nil(t, first.Pages)
	require.NotNil(t, first.Author)
	assert.Equal(t, int64(9), first.Author.ID)
	assert.Empty(t, first.Author.Name)

	second, err := m.Map(context.Background(), rows.Row(1))
	require.NoError(t, err)
	require.NotNil(t, second.Pages)
	assert.Equal(t, 300, *second.Pages)
	assert.Nil(t, second.Author)
}

func TestEntityMapperJoinPaths(t *testing.T) {
	m := NewEntityMapper(entity.MustNew[*book]("book"), NewReader(), "author", "author.publisher")
	rows := dbtest.NewRowSet("id", "title", "author_id", "author_name", "author_publisher_id", "author_publisher_name").
		AddRow(int64(1), "Dune", int64(9), "Herbert", int64(4), "Chilton").
		AddRow(int64(2), "Orphan", nil, nil, nil, nil)

	b, err := m.Map(context.Background(), rows.Row(0))
	require.NoError(t, err)
	require.NotNil(t, b.Author)
	assert.Equal(t, "Herbert", b.Author.Name)
	require.NotNil(t, b.Author.Publisher)
	assert.Equal(t, "Chilton", b.Author.Publisher.Name)

	orphan, err := m.Map(context.Background(), rows.Row(1))
	require.NoError(t, err)
	assert.Nil(t, orphan.Author, "left join without a match leaves the association nil")
}

func TestEntityMapperValueEntityAndPostLoad(t *testing.T) {
	e := entity.MustNew[publisher]("publisher").
		On(entity.PostLoad, func(_ context.Context, p publisher) (publisher, error) {
			p.Name += " (loaded)"
			return p, nil
		})
	m := NewEntityMapper(e, nil)

	p, err := m.Map(context.Background(), dbtest.NewRowSet("ID", "NAME").AddRow(int64(3), "Ace").Row(0))
	require.NoError(t, err)
	assert.Equal(t, publisher{ID: 3, Name: "Ace (loaded)"}, p)
}

func TestEntityMapperConversionError(t *testing.T) {
	m := NewEntityMapper(entity.MustNew[*book]("book"), nil)
	_, err := m.Map(context.Background(), dbtest.NewRowSet("id").AddRow("abc").Row(0))

	var dae *DataAccessError
	require.True(t, errors.As(err, &dae))
	assert.Equal(t, "id", dae.Column)
}
