package natsort

import (
	"sort"
	"testing"
)

func TestLessNumericRuns(t *testing.T) {
	names := []string{"img10.png", "img2.png", "img1.png", "img20.png"}
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })
	want := []string{"img1.png", "img2.png", "img10.png", "img20.png"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestLessCaseInsensitive(t *testing.T) {
	if !Less("Apple.png", "banana.png") {
		t.Error("expected Apple.png < banana.png case-insensitively")
	}
	if Less("banana.png", "Apple.png") == false && Less("Apple.png", "banana.png") == false {
		t.Error("expected a strict ordering between distinct names")
	}
}

func TestLessPrefixShorter(t *testing.T) {
	if !Less("img.png", "img1.png") {
		t.Error("expected shorter prefix to sort first")
	}
}

func TestLessLeadingZeros(t *testing.T) {
	names := []string{"img002.png", "img1.png", "img010.png"}
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })
	want := []string{"img1.png", "img002.png", "img010.png"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}
