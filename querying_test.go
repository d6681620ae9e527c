package gostruct

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

type Money struct {
	Amount   int64  `db:"amount"`
	Currency string `db:"currency"`
}

type Account struct {
	Id      int64  `db:"id"`
	Owner   string `db:"owner"`
	Balance Money  `db:"balance"`
	Limit   *Money `db:"limit,aggregate"`
}

var accountCols = []string{"balance.amount", "balance.currency", "id", "limit", "owner"}

func newMockDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func pgOpts() *Options { return &Options{Dialect: Postgres{}} }

func TestCols_account(t *testing.T) {
	require.Equal(t, accountCols, Cols(MustReflect(Account{})))
}

func TestQuery_structs(t *testing.T) {
	db, mock := newMockDB(t)
	mapping := MustReflect(Account{})

	// Columns in a different order than the mapping's.
	rows := sqlmock.NewRows([]string{"id", "owner", "limit", "balance.currency", "balance.amount"}).
		AddRow(int64(1), "alice", "(500,EUR)", "EUR", int64(1000)).
		AddRow(int64(2), "bob", nil, "USD", int64(-20))
	mock.ExpectQuery(`select .* from accounts`).WillReturnRows(rows)

	var accounts []Account
	err := Query(context.Background(), db, mapping, pgOpts(), &accounts, `select * from accounts`, nil)
	require.NoError(t, err)

	require.Equal(t, []Account{
		{
			Id:      1,
			Owner:   "alice",
			Balance: Money{Amount: 1000, Currency: "EUR"},
			Limit:   &Money{Amount: 500, Currency: "EUR"},
		},
		{
			Id:      2,
			Owner:   "bob",
			Balance: Money{Amount: -20, Currency: "USD"},
		},
	}, accounts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_struct_pointers(t *testing.T) {
	db, mock := newMockDB(t)
	mapping := MustReflect(Account{})

	rows := sqlmock.NewRows(accountCols).AddRow(int64(10), "EUR", int64(1), nil, "alice")
	mock.ExpectQuery(`select`).WillReturnRows(rows)

	accounts := []*Account{{Id: 99}}
	err := Query(context.Background(), db, mapping, pgOpts(), &accounts, `select`, nil)
	require.NoError(t, err)

	require.Len(t, accounts, 1)
	require.Equal(t, &Account{Id: 1, Owner: "alice", Balance: Money{Amount: 10, Currency: "EUR"}}, accounts[0])
}

func TestQuery_struct(t *testing.T) {
	db, mock := newMockDB(t)
	mapping := MustReflect(Account{})

	rows := sqlmock.NewRows(accountCols).AddRow(int64(10), "EUR", int64(1), []byte("(5,EUR)"), "alice")
	mock.ExpectQuery(`select`).WithArgs(int64(1)).WillReturnRows(rows)

	var account Account
	err := Query(context.Background(), db, mapping, pgOpts(), &account, `select`, []interface{}{int64(1)})
	require.NoError(t, err)
	require.Equal(t, &Money{Amount: 5, Currency: "EUR"}, account.Limit)
	require.Equal(t, "alice", account.Owner)
}

func TestQuery_struct_no_rows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`select`).WillReturnRows(sqlmock.NewRows(accountCols))

	var account Account
	err := Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &account, `select`, nil)
	require.ErrorIs(t, err, ErrNoRows)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestQuery_struct_multiple_rows(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(accountCols).
		AddRow(int64(10), "EUR", int64(1), nil, "alice").
		AddRow(int64(20), "EUR", int64(2), nil, "bob")
	mock.ExpectQuery(`select`).WillReturnRows(rows)

	var account Account
	err := Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &account, `select`, nil)
	require.ErrorIs(t, err, ErrMultipleRows)
}

func TestQuery_structs_empty_result(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`select`).WillReturnRows(sqlmock.NewRows(accountCols))

	accounts := []Account{{Id: 1}}
	err := Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &accounts, `select`, nil)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestQuery_column_mismatch(t *testing.T) {
	test := func(cols []string, values ...driver.Value) {
		t.Helper()
		db, mock := newMockDB(t)
		mock.ExpectQuery(`select`).WillReturnRows(sqlmock.NewRows(cols).AddRow(values...))

		var account Account
		err := Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &account, `select`, nil)
		require.ErrorIs(t, err, ErrStructuralMismatch)
	}

	test([]string{"id", "owner"}, int64(1), "alice")
	test(
		[]string{"balance.amount", "balance.currency", "id", "limit", "name"},
		int64(10), "EUR", int64(1), nil, "alice",
	)
}

func TestQuery_conversion_error(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(accountCols).AddRow("lots", "EUR", int64(1), nil, "alice")
	mock.ExpectQuery(`select`).WillReturnRows(rows)

	var account Account
	err := Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &account, `select`, nil)
	require.ErrorIs(t, err, ErrConversion)
}

func TestQuery_invalid_dest(t *testing.T) {
	db, _ := newMockDB(t)
	mapping := MustReflect(Account{})

	test := func(dest interface{}) {
		t.Helper()
		err := Query(context.Background(), db, mapping, nil, dest, `select`, nil)
		require.ErrorIs(t, err, ErrInvalidDest)
	}

	test(nil)
	test(Account{})
	test((*Account)(nil))
}

func TestQuery_wrong_dest_type(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows(accountCols).AddRow(int64(10), "EUR", int64(1), nil, "alice")
	mock.ExpectQuery(`select`).WillReturnRows(rows)

	var point Point
	err := Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &point, `select`, nil)
	require.ErrorIs(t, err, ErrInvalidDest)
}

func TestQuery_query_error(t *testing.T) {
	db, mock := newMockDB(t)
	cause := errors.New(`connection lost`)
	mock.ExpectQuery(`select`).WillReturnError(cause)

	var account Account
	err := Query(context.Background(), db, MustReflect(Account{}), nil, &account, `select`, nil)
	require.ErrorIs(t, err, cause)
}

func TestQuery_polymorphic(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"kind", "color", "radius", "side"}).
		AddRow("C", "red", 2.0, nil).
		AddRow("S", "blue", nil, 3.0)
	mock.ExpectQuery(`select`).WillReturnRows(rows)

	var shapes []Shape
	err := Query(context.Background(), db, testShapeMapping(), nil, &shapes, `select`, nil)
	require.NoError(t, err)
	require.Equal(t, []Shape{
		Circle{Color: "red", Radius: 2},
		Square{Color: "blue", Side: 3},
	}, shapes)
}

func TestQueryScanner(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"y", "x"}).AddRow(int64(2), int64(1)).AddRow(int64(4), int64(3))
	mock.ExpectQuery(`select`).WillReturnRows(rows)

	scan, err := QueryScanner(context.Background(), db, MustReflect(Point{}), nil, `select`, nil)
	require.NoError(t, err)
	defer scan.Close()

	var points []Point
	for scan.Next() {
		var point Point
		require.NoError(t, scan.Scan(&point))
		points = append(points, point)
	}
	require.NoError(t, scan.Err())
	require.Equal(t, []Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, points)
}

func TestSqlQuery_Query(t *testing.T) {
	db, mock := newMockDB(t)

	var query SqlQuery
	query.Append(`select * from accounts where true`)
	query.Append(`and id = $1`, int64(1))
	query.WrapSelectCols(MustReflect(Account{}))

	mock.ExpectQuery(regexp.QuoteMeta(
		`with _ as (select * from accounts where true and id = $1) select ` +
			`("balance")."amount" as "balance.amount", ("balance")."currency" as "balance.currency", ` +
			`"id", "limit", "owner" from _`,
	)).WithArgs(int64(1)).WillReturnRows(
		sqlmock.NewRows(accountCols).AddRow(int64(10), "EUR", int64(1), "(5,EUR)", "alice"),
	)

	var account Account
	require.NoError(t, query.Query(context.Background(), db, MustReflect(Account{}), pgOpts(), &account))
	require.Equal(t, int64(1), account.Id)
	require.Equal(t, &Money{Amount: 5, Currency: "EUR"}, account.Limit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlQuery_Exec_insert(t *testing.T) {
	db, mock := newMockDB(t)

	account := Account{
		Id:      1,
		Owner:   "alice",
		Balance: Money{Amount: 1000, Currency: "EUR"},
		Limit:   &Money{Amount: 500, Currency: "EUR"},
	}
	args, err := MappingSqlArgs(MustReflect(Account{}), account, pgOpts())
	require.NoError(t, err)

	var query SqlQuery
	query.Append(`insert into accounts`)
	query.Append(args.NamesAndValuesString(), args.Values()...)

	mock.ExpectExec(regexp.QuoteMeta(
		`insert into accounts ("balance.amount", "balance.currency", "id", "limit", "owner") values ($1, $2, $3, $4, $5)`,
	)).
		WithArgs(int64(1000), "EUR", int64(1), "(500,EUR)", "alice").
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := query.Exec(context.Background(), db)
	require.NoError(t, err)

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
