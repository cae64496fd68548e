package media

import "testing"

func TestImageExtensionSupport(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"photo.png", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"photo.webp", true},
		{"photo.heic", true},
		{"scan.tiff", false},
		{"photo.gif", false},
		{"noext", false},
	}

	for _, c := range cases {
		if got := IsImageSupported(c.filename); got != c.want {
			t.Errorf("IsImageSupported(%q) = %v, want %v", c.filename, got, c.want)
		}
	}
}

func TestAudioExtensionIncludesConvertible(t *testing.T) {
	// webm and m4a are not accepted by the backend directly but ffmpeg
	// converts them, so the gateway accepts them.
	for _, name := range []string{"clip.webm", "memo.m4a", "track.mp3", "voice.wav"} {
		if !IsAudioSupported(name) {
			t.Errorf("expected %q to be a supported audio upload", name)
		}
	}
	if IsAudioSupported("track.mid") {
		t.Error("midi should not be a supported audio upload")
	}
}

func TestMIMEAllowed(t *testing.T) {
	if !MIMEAllowed(KindAudio, "audio/mpeg") {
		t.Error("audio/mpeg should be allowed")
	}
	if !MIMEAllowed(KindVideo, "video/mp4") {
		t.Error("video/mp4 should be allowed")
	}
	if MIMEAllowed(KindImage, "application/pdf") {
		t.Error("application/pdf should not be allowed for images")
	}
}

func TestUploadExt(t *testing.T) {
	if got := UploadExt(KindAudio, "memo.M4A"); got != ".m4a" {
		t.Errorf("expected lowered own extension, got %q", got)
	}
	if got := UploadExt(KindAudio, ""); got != ".webm" {
		t.Errorf("expected audio default .webm, got %q", got)
	}
	if got := UploadExt(KindImage, ""); got != ".jpg" {
		t.Errorf("expected image default .jpg, got %q", got)
	}
	if got := UploadExt(KindVideo, "clip"); got != ".mp4" {
		t.Errorf("expected video default .mp4, got %q", got)
	}
}
