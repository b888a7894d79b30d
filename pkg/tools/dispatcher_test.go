package tools

import (
	"context"
	"errors"
	"testing"

	"crucible/pkg/material"

	"github.com/stretchr/testify/require"
)

type fakeIdentifier struct {
	calls  int
	result material.Identification
	err    error
	panic  bool
}

func (f *fakeIdentifier) Identify(ctx context.Context, p1, p2, fe float64) (material.Identification, error) {
	f.calls++
	if f.panic {
		panic("classifier exploded")
	}
	return f.result, f.err
}

func newTestDispatcher(id material.Identifier) *Dispatcher {
	reg := NewToolRegistry()
	reg.Register(NewIdentifyMaterialTool(id))
	return NewDispatcher(reg)
}

func TestDispatchUnknownTool(t *testing.T) {
	id := &fakeIdentifier{}
	d := newTestDispatcher(id)

	out := d.Dispatch(context.Background(), "summon_dragon", `{}`)

	require.False(t, out.Success)
	require.Contains(t, out.Error, "summon_dragon")
	require.ErrorIs(t, out.Err, ErrUnknownTool)
	require.Zero(t, id.calls)
}

func TestDispatchIdentifyMaterialSuccess(t *testing.T) {
	want := material.Identification{Label: "Ceria (CeO2)", Confidence: 0.97}
	id := &fakeIdentifier{result: want}
	d := newTestDispatcher(id)

	out := d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": 465, "peak_2": 610, "formation_energy": -11.2}`)

	require.True(t, out.Success)
	require.NoError(t, out.Err)
	require.Equal(t, want, out.Result)
	require.Equal(t, 1, id.calls)
	require.JSONEq(t, `{"success":true,"result":{"label":"Ceria (CeO2)","confidence":0.97}}`, out.Serialize())
}

func TestDispatchMissingArgument(t *testing.T) {
	id := &fakeIdentifier{}
	d := newTestDispatcher(id)

	out := d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": 465, "peak_2": 610}`)

	require.False(t, out.Success)
	require.ErrorIs(t, out.Err, ErrMissingArgument)
	require.Contains(t, out.Error, "formation_energy")
	require.Zero(t, id.calls)
}

func TestDispatchArgumentParseError(t *testing.T) {
	id := &fakeIdentifier{}
	d := newTestDispatcher(id)

	for _, raw := range []string{`{"peak_1": 465,`, `[1, 2, 3]`, `"text"`} {
		out := d.Dispatch(context.Background(), IdentifyMaterialName, raw)
		require.False(t, out.Success, raw)
		require.ErrorIs(t, out.Err, ErrArgumentParse, raw)
	}
	require.Zero(t, id.calls)
}

func TestDispatchCoercesNumericStrings(t *testing.T) {
	id := &fakeIdentifier{result: material.Identification{Label: "x"}}
	d := newTestDispatcher(id)

	out := d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": "465", "peak_2": " 610 ", "formation_energy": "-11.2"}`)
	require.True(t, out.Success)
	require.Equal(t, 1, id.calls)

	out = d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": "high", "peak_2": 610, "formation_energy": -11.2}`)
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err, ErrArgumentType)
	require.Contains(t, out.Error, "peak_1")
	require.Equal(t, 1, id.calls)
}

func TestDispatchToolErrorBecomesOutcome(t *testing.T) {
	id := &fakeIdentifier{err: errors.New("peak out of range")}
	d := newTestDispatcher(id)

	out := d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": 1, "peak_2": 2, "formation_energy": 3}`)

	require.False(t, out.Success)
	require.ErrorIs(t, out.Err, ErrToolExecution)
	require.Contains(t, out.Error, "peak out of range")
	require.JSONEq(t, `{"success":false,"error":"tool execution failed: peak out of range"}`, out.Serialize())
}

func TestDispatchRecoversPanics(t *testing.T) {
	id := &fakeIdentifier{panic: true}
	d := newTestDispatcher(id)

	out := d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": 1, "peak_2": 2, "formation_energy": 3}`)

	require.False(t, out.Success)
	require.ErrorIs(t, out.Err, ErrToolExecution)
	require.Contains(t, out.Error, "classifier exploded")
}

func TestDispatchWithRealClassifier(t *testing.T) {
	c, err := material.NewDefaultClassifier()
	require.NoError(t, err)
	d := newTestDispatcher(c)

	out := d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": 465, "peak_2": 610, "formation_energy": -11.2}`)
	require.True(t, out.Success)
	require.Equal(t, "Ceria (CeO2)", out.Result.(material.Identification).Label)

	out = d.Dispatch(context.Background(), IdentifyMaterialName, `{"peak_1": 465, "peak_2": 610, "formation_energy": -99}`)
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err, material.ErrOutOfRange)
}

func TestRegistrySchemas(t *testing.T) {
	d := newTestDispatcher(&fakeIdentifier{})

	schemas := d.Schemas()
	require.Len(t, schemas, 1)
	require.Equal(t, IdentifyMaterialName, schemas[0].Name)
	require.Equal(t, []string{ArgPeak1, ArgPeak2, ArgFormationEnergy}, schemas[0].RequiredParameters())

	js := schemas[0].JSONSchema()
	require.Equal(t, "object", js["type"])
	require.Len(t, js["properties"], 3)
}
