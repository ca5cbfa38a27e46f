package snowflake

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowadmin/internal/credentials"
	"snowadmin/internal/testutil"
	"snowadmin/pkg/errors"
)

func testBundle(t *testing.T) *credentials.Bundle {
	return credentials.NewBundle("xy12345", "AGENTNEXUS_SVC", "COMPUTE_WH", "AGENTNEXUS_ROLE", testutil.PKCS8DER(t))
}

func testConfig(t *testing.T) Config {
	cfg, err := NewConfig(testBundle(t), Options{KeepAlive: true})
	require.NoError(t, err)
	return cfg
}

func mockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	db, mock := testutil.NewTestHelper(t).MockDB()
	return NewServiceWithDB(db, testConfig(t), testutil.DiscardLogger()), mock
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(testBundle(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, "xy12345", cfg.Account)
	assert.Equal(t, "AGENTNEXUS_SVC", cfg.User)
	assert.Equal(t, "COMPUTE_WH", cfg.Warehouse)
	assert.Equal(t, "AGENTNEXUS_ROLE", cfg.Role)
	assert.Equal(t, DefaultLoginTimeout, cfg.LoginTimeout)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.True(t, cfg.PrivateKey.Equal(testutil.RSAKey(t)))

	cfg, err = NewConfig(testBundle(t), Options{
		Role:           "SYSADMIN",
		Database:       "HCS0001_DB",
		LoginTimeout:   time.Minute,
		RequestTimeout: 2 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "SYSADMIN", cfg.Role)
	assert.Equal(t, "HCS0001_DB", cfg.Database)
	assert.Equal(t, time.Minute, cfg.LoginTimeout)
}

func TestNewConfigRejectsUnusableKey(t *testing.T) {
	bundle := credentials.NewBundle("xy12345", "svc", "wh", "role", []byte("raw-secret-without-markers"))
	_, err := NewConfig(bundle, Options{})
	assert.True(t, stderrors.Is(err, errors.ErrKeyParse))
}

func TestValidateConfig(t *testing.T) {
	valid := testConfig(t)

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing account", func(c *Config) { c.Account = "" }, "account is required"},
		{"missing user", func(c *Config) { c.User = "" }, "user is required"},
		{"missing warehouse", func(c *Config) { c.Warehouse = "" }, "warehouse is required"},
		{"missing role", func(c *Config) { c.Role = "" }, "role is required"},
		{"missing key", func(c *Config) { c.PrivateKey = nil }, "private key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.errorMsg)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Role = "SYSADMIN"

	dsn, err := DSN(cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "AGENTNEXUS_SVC:@"), dsn)
	assert.Contains(t, dsn, "authenticator=snowflake_jwt")

	parsed, err := gosnowflake.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, gosnowflake.AuthTypeJwt, parsed.Authenticator)
	assert.Equal(t, "AGENTNEXUS_SVC", parsed.User)
	assert.Empty(t, parsed.Password)
	assert.Equal(t, "xy12345", parsed.Account)
	assert.Equal(t, "SYSADMIN", parsed.Role)
	assert.Equal(t, "COMPUTE_WH", parsed.Warehouse)
	require.NotNil(t, parsed.PrivateKey)
	assert.True(t, cfg.PrivateKey.Equal(parsed.PrivateKey))
	require.Contains(t, parsed.Params, "client_session_keep_alive")
	assert.Equal(t, "true", *parsed.Params["client_session_keep_alive"])
}

func TestConnect(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	var gotDriver, gotDSN string
	svc := NewService(testConfig(t), testutil.DiscardLogger())
	svc.open = func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	}

	mock.ExpectPing()
	require.NoError(t, svc.Connect(context.Background()))
	assert.Equal(t, "snowflake", gotDriver)
	parsed, err := gosnowflake.ParseDSN(gotDSN)
	require.NoError(t, err)
	assert.Equal(t, gosnowflake.AuthTypeJwt, parsed.Authenticator)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)

	// Already connected: no second open.
	svc.open = nil
	require.NoError(t, svc.Connect(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectErrors(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		wantCode errors.ErrorCode
	}{
		{
			name:     "jwt rejected",
			pingErr:  &gosnowflake.SnowflakeError{Number: 390144, Message: "JWT token is invalid."},
			wantCode: errors.ErrCodeAuthenticationFailed,
		},
		{
			name:     "role not granted",
			pingErr:  &gosnowflake.SnowflakeError{Number: 390186, Message: "Role 'SYSADMIN' specified in the connect string is not granted to this user."},
			wantCode: errors.ErrCodeAuthenticationFailed,
		},
		{
			name:     "timeout",
			pingErr:  context.DeadlineExceeded,
			wantCode: errors.ErrCodeConnectionTimeout,
		},
		{
			name:     "network",
			pingErr:  stderrors.New("dial tcp: lookup xy12345.snowflakecomputing.com: no such host"),
			wantCode: errors.ErrCodeConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()

			svc := NewService(testConfig(t), testutil.DiscardLogger())
			svc.open = func(string, string) (*sql.DB, error) { return db, nil }

			mock.ExpectPing().WillReturnError(tt.pingErr)
			err = svc.Connect(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
			assert.False(t, svc.connected)
		})
	}
}

func TestConnectInvalidConfig(t *testing.T) {
	svc := NewService(Config{Account: "xy12345"}, testutil.DiscardLogger())
	err := svc.Connect(context.Background())
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestNotConnected(t *testing.T) {
	svc := NewService(testConfig(t), testutil.DiscardLogger())
	ctx := context.Background()

	_, err := svc.Exec(ctx, "SELECT 1")
	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(err))
	_, err = svc.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	_, err = svc.QueryInt(ctx, "SELECT 1")
	assert.Error(t, err)
	_, err = svc.BeginTx(ctx)
	assert.Error(t, err)
	assert.NoError(t, svc.Close())
}

func TestQuery(t *testing.T) {
	svc, mock := mockService(t)
	ctx := context.Background()

	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SHOW DATABASES").
		WillReturnRows(sqlmock.NewRows([]string{"created_on", "name", "comment"}).
			AddRow(created, "VIDEXA_SHARED", nil).
			AddRow(created, "HCS0001_DB", []byte("tenant")))

	rs, err := svc.Query(ctx, "SHOW DATABASES")
	require.NoError(t, err)
	assert.Equal(t, []string{"created_on", "name", "comment"}, rs.Columns)
	assert.Equal(t, [][]string{
		{"2025-01-15T10:00:00Z", "VIDEXA_SHARED", "NULL"},
		{"2025-01-15T10:00:00Z", "HCS0001_DB", "tenant"},
	}, rs.Rows)

	mock.ExpectQuery("SHOW SCHEMAS IN DATABASE VIDEXA_SHARED").
		WillReturnRows(sqlmock.NewRows([]string{"created_on", "name"}).
			AddRow(created, "TENANT_MANAGEMENT").
			AddRow(created, "CORTEX_FUNCTIONS"))
	names, err := svc.QueryColumn(ctx, 1, "SHOW SCHEMAS IN DATABASE VIDEXA_SHARED")
	require.NoError(t, err)
	assert.Equal(t, []string{"TENANT_MANAGEMENT", "CORTEX_FUNCTIONS"}, names)

	mock.ExpectQuery("SHOW ROLES").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("SYSADMIN"))
	_, err = svc.QueryColumn(ctx, 3, "SHOW ROLES")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryScalars(t *testing.T) {
	svc, mock := mockService(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM CLAIMS`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	n, err := svc.QueryInt(ctx, "SELECT COUNT(*) FROM CLAIMS")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	mock.ExpectQuery(`SELECT CURRENT_ROLE\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("SYSADMIN"))
	role, err := svc.QueryString(ctx, "SELECT CURRENT_ROLE()")
	require.NoError(t, err)
	assert.Equal(t, "SYSADMIN", role)

	mock.ExpectQuery(`SELECT CURRENT_DATABASE\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"db"}).AddRow(nil))
	db, err := svc.QueryString(ctx, "SELECT CURRENT_DATABASE()")
	require.NoError(t, err)
	assert.Equal(t, "NULL", db)

	mock.ExpectQuery("SELECT DATABASE_NAME").
		WithArgs("HCS9999").
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE_NAME"}))
	_, err = svc.QueryString(ctx, "SELECT DATABASE_NAME FROM ORGANIZATIONS WHERE ORG_ID = ?", "HCS9999")
	assert.Equal(t, errors.ErrCodeNoResults, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecClassifiesErrors(t *testing.T) {
	svc, mock := mockService(t)

	mock.ExpectExec("USE DATABASE HCS0001_DB").
		WillReturnError(stderrors.New("002043 (02000): SQL compilation error: Object does not exist, or operation cannot be performed."))
	_, err := svc.Exec(context.Background(), "USE DATABASE HCS0001_DB")
	assert.Equal(t, errors.ErrCodeSQLObjectNotFound, errors.GetErrorCode(err))

	mock.ExpectExec("CREATE DATABASE X").
		WillReturnError(stderrors.New("003001 (42501): SQL access control error: Insufficient privileges to operate on account"))
	_, err = svc.Exec(context.Background(), "CREATE DATABASE X")
	assert.Equal(t, errors.ErrCodeSQLPermission, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteScript(t *testing.T) {
	svc, mock := mockService(t)

	script := `
-- tenant registry
CREATE DATABASE IF NOT EXISTS VIDEXA_SHARED;
CREATE SCHEMA VIDEXA_SHARED.TENANT_MANAGEMENT;
/* seed */
SELECT 'a;b' AS X;
`
	mock.ExpectQuery("CREATE DATABASE IF NOT EXISTS VIDEXA_SHARED").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("VIDEXA_SHARED already exists, statement succeeded."))
	mock.ExpectQuery("CREATE SCHEMA VIDEXA_SHARED.TENANT_MANAGEMENT").
		WillReturnError(stderrors.New("002002 (42710): SQL compilation error: Object 'TENANT_MANAGEMENT' already exists."))
	mock.ExpectQuery("SELECT 'a;b' AS X").
		WillReturnRows(sqlmock.NewRows([]string{"X"}).AddRow("a;b"))

	results, err := svc.ExecuteScript(context.Background(), script)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Index)
	assert.Error(t, results[1].Err, "statement errors do not stop the script")
	assert.Equal(t, [][]string{{"a;b"}}, results[2].Result.Rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteScriptCancelled(t *testing.T) {
	svc, _ := mockService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := svc.ExecuteScript(ctx, "SELECT 1; SELECT 2;")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestExecuteMulti(t *testing.T) {
	svc, mock := mockService(t)
	script := "CREATE TABLE A (ID INT);\nCREATE TABLE B (ID INT);"

	mock.ExpectExec(`CREATE TABLE A \(ID INT\);\s*CREATE TABLE B \(ID INT\);`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, svc.ExecuteMulti(context.Background(), script))

	mock.ExpectExec("CREATE TABLE A").
		WillReturnError(stderrors.New("SQL compilation error: syntax error line 2 at position 0 unexpected 'CREATE'"))
	err := svc.ExecuteMulti(context.Background(), script)
	assert.Equal(t, errors.ErrCodeSQLSyntax, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUse(t *testing.T) {
	svc, mock := mockService(t)
	ctx := context.Background()

	mock.ExpectExec("USE ROLE HCS0001_ROLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, svc.Use(ctx, "ROLE", "HCS0001_ROLE"))

	err := svc.Use(ctx, "DATABASE", "HCS0001_DB; DROP DATABASE VIDEXA_SHARED")
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))

	err = svc.Use(ctx, "SECONDARY ROLES", "ALL")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginTx(t *testing.T) {
	svc, mock := mockService(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err := svc.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	mock.ExpectBegin().WillReturnError(stderrors.New("session expired"))
	_, err = svc.BeginTx(context.Background())
	assert.Equal(t, errors.ErrCodeSQLTransaction, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose(t *testing.T) {
	svc, mock := mockService(t)
	mock.ExpectClose()
	require.NoError(t, svc.Close())
	assert.False(t, svc.connected)
	assert.NoError(t, svc.Close())
}
