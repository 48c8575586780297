package frontmatter

import (
	"math"
	"testing"
)

func TestNumber_NonFiniteIsNull(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if v := Number(f); !v.IsNull() {
			t.Errorf("Number(%v) kind = %s, want null", f, v.Kind())
		}
	}
}

func TestParseTyped(t *testing.T) {
	tests := []struct {
		kind    Kind
		text    string
		want    Value
		wantErr bool
	}{
		{KindString, "true", String("true"), false},
		{KindString, "42", String("42"), false},
		{KindBool, "true", Bool(true), false},
		{KindBool, "nope", Value{}, true},
		{KindNumber, "42", Int(42), false},
		{KindNumber, "1.5", Number(1.5), false},
		{KindNumber, "NaN", Value{}, true},
		{KindNull, "anything", Null(), false},
	}
	for _, tt := range tests {
		got, err := ParseTyped(tt.kind, tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTyped(%s, %q) err = %v", tt.kind, tt.text, err)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseTyped(%s, %q) = %s, want %s", tt.kind, tt.text, got.Text(), tt.want.Text())
		}
	}
}

func TestValue_EqualDistinguishesKinds(t *testing.T) {
	if String("true").Equal(Bool(true)) {
		t.Error("string true must not equal boolean true")
	}
	if String("1").Equal(Int(1)) {
		t.Error("string 1 must not equal number 1")
	}
	if Null().Equal(String("")) {
		t.Error("null must not equal the empty string")
	}
}

func TestValue_ObjectEqualIgnoresOrder(t *testing.T) {
	a := Object(Field{"x", Int(1)}, Field{"y", Int(2)})
	b := Object(Field{"y", Int(2)}, Field{"x", Int(1)})
	if !a.Equal(b) {
		t.Error("expected equal objects")
	}
}

func TestValue_Text(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null(), "null"},
		{String("hi"), "hi"},
		{Bool(false), "false"},
		{Int(7), "7"},
		{Array(String("a"), Int(1)), "a, 1"},
		{Object(Field{"k", String("v")}), `{"k":"v"}`},
	}
	for _, tt := range tests {
		if got := tt.v.Text(); got != tt.want {
			t.Errorf("Text() = %q, want %q", got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(Null()); got != "unset" {
		t.Errorf("got %q, want %q", got, "unset")
	}
	if got := Describe(String("")); got != "empty" {
		t.Errorf("got %q, want %q", got, "empty")
	}
	if got := Describe(Array(String("a"), String("b"))); got != "a, b" {
		t.Errorf("got %q, want %q", got, "a, b")
	}
}

func TestValue_JSONRoundTripPreservesOrder(t *testing.T) {
	var v Value
	if err := v.UnmarshalJSON([]byte(`{"b":1,"a":[true,"x",null],"c":1.25}`)); err != nil {
		t.Fatal(err)
	}
	fields := v.Fields()
	if len(fields) != 3 || fields[0].Key != "b" || fields[1].Key != "a" || fields[2].Key != "c" {
		t.Fatalf("fields = %+v", fields)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"b":1,"a":[true,"x",null],"c":1.25}` {
		t.Errorf("json = %s", data)
	}
}
