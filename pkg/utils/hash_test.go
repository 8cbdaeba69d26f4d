package utils

import "testing"

func TestProgramDigest(t *testing.T) {
	a := ProgramDigest("const bucket = new aws.s3.Bucket(\"logs\");")
	b := ProgramDigest("const bucket = new aws.s3.Bucket(\"logs\");")
	c := ProgramDigest("const bucket = new aws.s3.Bucket(\"other\");")

	if len(a) != 12 {
		t.Fatalf("expected 12 hex chars, got %d (%s)", len(a), a)
	}
	if a != b {
		t.Fatalf("digest not stable: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different programs share digest %s", a)
	}
}
