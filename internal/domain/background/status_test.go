package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRecord_TotalSizeInBytes(t *testing.T) {
	tests := []struct {
		name string
		rec  StatusRecord
		want int64
	}{
		{
			name: "working uses estimate",
			rec: StatusRecord{
				State:      JobStateWorking,
				TotalBytes: 500,
				Packages:   []PackageProgress{{ProcessedBytes: 100}},
			},
			want: 500,
		},
		{
			name: "success sums processed bytes",
			rec: StatusRecord{
				State:      JobStateSuccess,
				TotalBytes: 500,
				Packages:   []PackageProgress{{ProcessedBytes: 100}, {ProcessedBytes: 250}},
			},
			want: 350,
		},
		{
			name: "success with empty packages falls back",
			rec: StatusRecord{
				State:      JobStateSuccess,
				TotalBytes: 500,
				Packages:   []PackageProgress{{}},
			},
			want: 500,
		},
		{
			name: "package kind without packages",
			rec:  StatusRecord{Kind: JobKindPackage, State: JobStateSuccess, TotalBytes: 7},
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.TotalSizeInBytes())
		})
	}
}

func TestStatusRecord_IsDownloadable(t *testing.T) {
	assert.True(t, StatusRecord{State: JobStateSuccess, FilePath: "/tmp/out.zip"}.IsDownloadable())
	assert.False(t, StatusRecord{State: JobStateWorking, FilePath: "/tmp/out.zip"}.IsDownloadable())
	assert.False(t, StatusRecord{State: JobStateSuccess}.IsDownloadable())
}

func TestPackageProgress_IsDone(t *testing.T) {
	assert.True(t, PackageProgress{URL: "https://x/p1"}.IsDone())
	assert.True(t, PackageProgress{TotalFiles: 3, ProcessedFiles: 3}.IsDone())
	assert.False(t, PackageProgress{TotalFiles: 3, ProcessedFiles: 2}.IsDone())
	assert.False(t, PackageProgress{}.IsDone())

	rec := StatusRecord{Packages: []PackageProgress{{URL: "u"}, {TotalFiles: 1}}}
	assert.Equal(t, 1, rec.PackagesDone())
}

func TestStatusRecord_CloneIsDeep(t *testing.T) {
	orig := StatusRecord{ID: "J1", Messages: []string{"a"}, Attributes: []JobAttribute{AttributeZipped}}
	c := orig.Clone()
	c.Messages[0] = "b"
	c.Attributes[0] = AttributeEmailSent

	assert.Equal(t, "a", orig.Messages[0])
	assert.True(t, orig.HasAttribute(AttributeZipped))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, AttributeUnknown, ParseJobAttribute("SOMETHING_NEW"))
	assert.Equal(t, AttributeLongQueue, ParseJobAttribute("LONG_QUEUE"))
	assert.Equal(t, DownloadUnknown, ParseDownloadProgress(""))
	assert.Equal(t, DownloadDone, ParseDownloadProgress("DONE"))

	k, err := ParseJobKind("PERSISTENT")
	assert.NoError(t, err)
	assert.Equal(t, JobKindPersistent, k)
	_, err = ParseJobKind("BATCH")
	assert.ErrorIs(t, err, ErrUnknownJobKind)

	u, err := ParseUIType("DOWNLOAD")
	assert.NoError(t, err)
	assert.Equal(t, UITypeDownload, u)
	_, err = ParseUIType("POPUP")
	assert.ErrorIs(t, err, ErrUnknownUIType)
}
