package deviceagent

import (
	"path/filepath"
	"testing"
)

func TestHostHashesWalksTreesInOrder(t *testing.T) {
	disableHashCache(t)
	dir := t.TempDir()
	writeHostFile(t, dir, "b.txt", "bee")
	writeHostFile(t, dir, filepath.Join("sub", "c.txt"), "sea")
	writeHostFile(t, dir, "a.txt", "ay")

	records, err := hostHashes([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %v", records)
	}
	wantNames := []string{"a.txt", "b.txt", "c.txt"}
	wantHashes := []string{md5Of("ay"), md5Of("bee"), md5Of("sea")}
	for i, record := range records {
		if filepath.Base(record.Path) != wantNames[i] || record.Hash != wantHashes[i] {
			t.Fatalf("record[%d] = %+v, want %s/%s", i, record, wantNames[i], wantHashes[i])
		}
	}
}

func TestHostHashesSingleFile(t *testing.T) {
	disableHashCache(t)
	path := writeHostFile(t, t.TempDir(), "f.txt", "payload")
	records, err := hostHashes([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Path != path || records[0].Hash != md5Of("payload") {
		t.Fatalf("records = %v", records)
	}
}

func TestHostHashesServedFromPersistentCache(t *testing.T) {
	t.Setenv("DEVICEAGENT_SQLITE_PATH", filepath.Join(t.TempDir(), "hashes.sqlite"))
	resetHashCache(t)

	path := writeHostFile(t, t.TempDir(), "f.txt", "payload")
	for i := 0; i < 2; i++ {
		records, err := hostHashes([]string{path})
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 || records[0].Hash != md5Of("payload") {
			t.Fatalf("pass %d: records = %v", i, records)
		}
	}
}

func TestDeviceHashesFiltersNoiseLines(t *testing.T) {
	device, _ := newFakeDevice(func(cmd string) (string, error) {
		return md5Of("alpha") + "  /data/a\n" +
			"md5sum: /data/b: No such file or directory\n" +
			"garbage line\n" +
			md5Of("gamma") + "  /data/c\n", nil
	})

	records, err := device.deviceHashes([]string{"/data/a", "/data/b", "/data/c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v", records)
	}
	if records[0].Path != "/data/a" || records[0].Hash != md5Of("alpha") {
		t.Fatalf("records[0] = %+v", records[0])
	}
	if records[1].Path != "/data/c" || records[1].Hash != md5Of("gamma") {
		t.Fatalf("records[1] = %+v", records[1])
	}
}

func TestDeviceHashesEmptyInput(t *testing.T) {
	device, fake := newFakeDevice(nil)
	records, err := device.deviceHashes(nil)
	if err != nil || records != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", records, err)
	}
	if len(fake.shellCalls) != 0 {
		t.Fatalf("no device call expected, got %v", fake.shellCalls)
	}
}
