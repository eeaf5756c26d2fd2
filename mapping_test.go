package tablemap

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	team struct {
		ID      int
		Name    string
		Members []*member
	}
	member struct {
		ID    int
		Name  string
		Buddy *member
	}
	priority  int
	orderLine struct{}
	ticket    struct {
		Code     string
		Priority priority
		Due      *Date
	}
	assignment struct {
		ID     int
		Ticket *ticket
	}
)

func teamMapping() *EntityMapping[team] {
	return NewMapping[team]("").
		AddPrimaryKey(Prop("ID", func(t *team) *int { return &t.ID }), "").
		AddField(Prop("Name", func(t *team) *string { return &t.Name }), "").
		AddForeignKey(Refs("Members", func(t *team) *[]*member { return &t.Members }), "members", "team_id")
}

func memberMapping() *EntityMapping[member] {
	return NewMapping[member]("members").
		AddPrimaryKey(Prop("ID", func(m *member) *int { return &m.ID }), "id").
		AddField(Prop("Name", func(m *member) *string { return &m.Name }), "name", TypeVarChar).
		AddForeignKey(Ref("Buddy", func(m *member) **member { return &m.Buddy }), "members", "buddy_id").
		AddForeignKey(BackRef("Team", func(t *team) *[]*member { return &t.Members }), "teams", "team_id")
}

func TestDefaultNames(t *testing.T) {
	assert.Equal(t, "teams", DefaultTableName(reflect.TypeFor[team]()))
	assert.Equal(t, "order_lines", DefaultTableName(reflect.TypeFor[orderLine]()))
	assert.Equal(t, "unit_price", DefaultColumnName("UnitPrice"))
	assert.Equal(t, "birthday", DefaultColumnName("Birthday"))
	assert.Equal(t, "customer_id", DefaultColumnName("CustomerID"))
	assert.Equal(t, "id", DefaultColumnName("ID"))

	m := teamMapping()
	assert.Equal(t, "teams", m.Table)
	assert.Equal(t, "id", m.PrimaryKey.Column)
	assert.Equal(t, "name", m.Fields()[1].Column)
}

func TestMappingFields(t *testing.T) {
	m := memberMapping()
	require.NoError(t, m.validate())
	require.Len(t, m.Fields(), 4)

	name := m.Fields()[1]
	assert.Equal(t, "Name", name.Property)
	assert.Equal(t, reflect.TypeFor[string](), name.NativeType)
	assert.Equal(t, TypeVarChar, name.ColumnType)
	assert.Equal(t, Scalar, name.Kind())
	_, ok := name.ForeignKey()
	assert.False(t, ok)

	buddy, ok := m.Fields()[2].ForeignKey()
	require.True(t, ok)
	assert.Equal(t, ScalarOwning, buddy.Kind)
	assert.Equal(t, reflect.TypeFor[member](), buddy.ForeignType)
	assert.Equal(t, TypeString, buddy.ColumnType)

	back, ok := m.Fields()[3].ForeignKey()
	require.True(t, ok)
	assert.Equal(t, BackReferenceCollection, back.Kind)
	assert.Equal(t, reflect.TypeFor[team](), back.ForeignType)

	cols := m.columns()
	require.Len(t, cols, 4)
	assert.Empty(t, m.owned())

	tm := teamMapping()
	assert.Len(t, tm.columns(), 2)
	require.Len(t, tm.owned(), 1)
	assert.Equal(t, "team_id", tm.owned()[0].Column)
}

func TestMappingErrors(t *testing.T) {
	t.Run("DuplicatePrimaryKey", func(t *testing.T) {
		m := NewMapping[team]("teams").
			AddPrimaryKey(Prop("ID", func(t *team) *int { return &t.ID }), "id").
			AddPrimaryKey(Prop("Name", func(t *team) *string { return &t.Name }), "name")
		err := m.validate()
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
		assert.Contains(t, err.Error(), `primary key already set to "ID"`)
	})

	t.Run("DuplicateColumn", func(t *testing.T) {
		m := NewMapping[team]("teams").
			AddField(Prop("ID", func(t *team) *int { return &t.ID }), "x").
			AddField(Prop("Name", func(t *team) *string { return &t.Name }), "x")
		assert.ErrorContains(t, m.validate(), `column "x" already mapped by "ID"`)
	})

	t.Run("OwnedWithoutPrimaryKey", func(t *testing.T) {
		m := NewMapping[team]("teams").
			AddForeignKey(Refs("Members", func(t *team) *[]*member { return &t.Members }), "members", "team_id")
		err := m.validate()
		assert.True(t, IsConfigError(err))
		assert.ErrorContains(t, err, "owned collection requires a primary key")
	})

	t.Run("InvalidIdentifier", func(t *testing.T) {
		m := NewMapping[team]("teams; DROP TABLE x")
		assert.ErrorContains(t, m.validate(), "invalid table name")

		m = NewMapping[team]("teams").
			AddField(Prop("Name", func(t *team) *string { return &t.Name }), "na me")
		assert.ErrorContains(t, m.validate(), `invalid column name "na me"`)
	})

	t.Run("UndeclaredRelation", func(t *testing.T) {
		m := NewMapping[team]("teams").AddForeignKey(Relation[team]{name: "Members"}, "members", "team_id")
		assert.True(t, IsConfigError(m.Err()))
	})

	t.Run("BackReference", func(t *testing.T) {
		m := memberMapping()
		fk, err := m.backReference(reflect.TypeFor[team](), "team_id")
		require.NoError(t, err)
		assert.Equal(t, "Team", fk.Property)

		_, err = m.backReference(reflect.TypeFor[team](), "group_id")
		assert.True(t, IsConfigError(err))
		assert.ErrorContains(t, err, `no back reference to team over column "group_id"`)

		_, err = m.backReference(reflect.TypeFor[ticket](), "team_id")
		assert.True(t, IsConfigError(err))
	})
}

func TestMappingString(t *testing.T) {
	s := memberMapping().String()
	assert.Contains(t, s, `Mapping for "tablemap.member" to table "members"`)
	assert.Contains(t, s, `Field "ID" (int) --> "id" (int32) [pk]`)
	assert.Contains(t, s, `ForeignKey "Buddy" (*tablemap.member) --> members.buddy_id (string, scalar-owning)`)
	assert.Contains(t, s, `ForeignKey "Team" ([]*tablemap.member) --> teams.team_id (string, back-reference)`)
}

func TestDefaultColumnType(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		want ColumnType
	}{
		{reflect.TypeFor[string](), TypeText},
		{reflect.TypeFor[*string](), TypeText},
		{reflect.TypeFor[int](), TypeInt32},
		{reflect.TypeFor[int16](), TypeInt32},
		{reflect.TypeFor[int64](), TypeInt64},
		{reflect.TypeFor[uint32](), TypeInt64},
		{reflect.TypeFor[priority](), TypeInt32},
		{reflect.TypeFor[float64](), TypeDouble},
		{reflect.TypeFor[bool](), TypeBool},
		{reflect.TypeFor[decimal.Decimal](), TypeDecimal},
		{reflect.TypeFor[Date](), TypeDate},
		{reflect.TypeFor[*Date](), TypeDate},
		{reflect.TypeFor[Clock](), TypeTime},
		{reflect.TypeFor[time.Time](), TypeDateTime},
		{reflect.TypeFor[[]byte](), TypeBlob},
		{reflect.TypeFor[uuid.UUID](), TypeString},
		{reflect.TypeFor[struct{}](), TypeString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultColumnType(tt.typ), tt.typ.String())
	}
}

func TestForeignKeyColumnType(t *testing.T) {
	ref := func() Relation[assignment] {
		return Ref("Ticket", func(a *assignment) **ticket { return &a.Ticket })
	}
	m := NewMapping[assignment]("").
		AddPrimaryKey(Prop("ID", func(a *assignment) *int { return &a.ID }), "").
		AddForeignKey(ref(), "tickets", "ticket_code")
	fk, ok := m.Fields()[1].ForeignKey()
	require.True(t, ok)
	assert.Equal(t, TypeString, fk.columnType(nil))

	reg := NewRegistry(t.Name())
	require.NoError(t, reg.Register(NewFactoryWithMapping(m, nil)))
	assert.Equal(t, TypeString, fk.columnType(reg))

	tickets := NewMapping[ticket]("").
		AddPrimaryKey(Prop("Code", func(k *ticket) *string { return &k.Code }), "")
	require.NoError(t, reg.Register(NewFactoryWithMapping(tickets, nil)))
	assert.Equal(t, TypeText, fk.columnType(reg))
	v, err := fk.bindKey(reg, "T-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", v)

	explicit, ok := NewMapping[assignment]("").
		AddForeignKey(ref(), "tickets", "ticket_code", TypeInt64).
		Fields()[0].ForeignKey()
	require.True(t, ok)
	assert.Equal(t, TypeInt64, explicit.columnType(reg))
	_, err = explicit.bindKey(reg, "T-1")
	assert.ErrorIs(t, err, ErrConversion)
	var cerr *ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Ticket", cerr.Property)
	assert.Equal(t, "T-1", cerr.From)
}
