package redis

import "testing"

func TestBoolReplyDecoder(t *testing.T) {
	cases := []struct {
		raw  any
		want bool
	}{
		{raw: int64(1), want: true},
		{raw: int64(0), want: false},
		{raw: "1", want: true},
		{raw: nil, want: false},
		{raw: true, want: true},
	}
	d := BoolReplyDecoder{}
	for _, c := range cases {
		got, err := d.Decode(c.raw)
		if err != nil {
			t.Fatalf("Decode(%v) failed: %v", c.raw, err)
		}
		if got != c.want {
			t.Fatalf("Decode(%v) = %v, want %v", c.raw, got, c.want)
		}
	}
	if _, err := d.Decode(3.5); err == nil {
		t.Fatalf("expected an error decoding a float")
	}
	if !d.IsApplicable(0) {
		t.Fatalf("decoder should apply to field 0")
	}
}

func TestInt64ReplyDecoder(t *testing.T) {
	d := Int64ReplyDecoder{}
	if v, err := d.Decode("42"); err != nil || v != 42 {
		t.Fatalf("Decode(\"42\") = %d, %v", v, err)
	}
	if v, err := d.Decode(int64(-3)); err != nil || v != -3 {
		t.Fatalf("Decode(-3) = %d, %v", v, err)
	}
	if v, err := d.Decode(nil); err != nil || v != 0 {
		t.Fatalf("Decode(nil) = %d, %v", v, err)
	}
	if _, err := d.Decode("abc"); err == nil {
		t.Fatalf("expected an error decoding a non numeric string")
	}
}
