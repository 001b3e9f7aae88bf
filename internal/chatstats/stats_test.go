package chatstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const telegramExport = `<div class="history">
<div class="message service" id="message-1"><div class="body details">12 March 2024</div></div>
<div class="message default clearfix" id="message1">
 <div class="body">
  <div class="pull_right date details" title="12.03.2024 21:15:00 UTC+03:00">21:15</div>
  <div class="from_name">
USER_1
  </div>
  <div class="text">Привет</div>
 </div>
</div>
<div class="message default clearfix joined" id="message2">
 <div class="body">
  <div class="pull_right date details" title="12.03.2024 21:16:00 UTC+03:00">21:16</div>
  <div class="text">Как <a href="#">дела</a>?</div>
 </div>
</div>
<div class="message default clearfix" id="message3">
 <div class="body">
  <div class="pull_right date details" title="13.03.2024 09:00:00 UTC+03:00">09:00</div>
  <div class="from_name">USER_2</div>
  <div class="text">Норм</div>
 </div>
</div>
</div>`

func TestComputeTelegram(t *testing.T) {
	s := Compute(telegramExport)

	assert.Equal(t, 3, s.TotalMessages)
	assert.Equal(t, []ParticipantStats{
		{ID: "USER_1", MessagesCount: 2, AvgMessageLength: 7.5},
		{ID: "USER_2", MessagesCount: 1, AvgMessageLength: 4},
	}, s.Participants)

	require.NotNil(t, s.FirstMessageAt)
	require.NotNil(t, s.LastMessageAt)
	assert.Equal(t, "2024-03-12T18:15:00Z", *s.FirstMessageAt)
	assert.Equal(t, "2024-03-13T06:00:00Z", *s.LastMessageAt)
}

func TestComputeWhatsApp(t *testing.T) {
	text := "12.03.2024, 21:15 - USER_1: Привет\n" +
		"12.03.2024, 21:16 - USER_2: Ку\n" +
		"Сообщения защищены сквозным шифрованием\n" +
		"14.03.2024, 08:00 - USER_1: Пока"

	s := Compute(text)

	assert.Equal(t, 3, s.TotalMessages)
	assert.Equal(t, []ParticipantStats{
		{ID: "USER_1", MessagesCount: 2, AvgMessageLength: 5},
		{ID: "USER_2", MessagesCount: 1, AvgMessageLength: 2},
	}, s.Participants)
	assert.Equal(t, "2024-03-12T21:15:00Z", *s.FirstMessageAt)
	assert.Equal(t, "2024-03-14T08:00:00Z", *s.LastMessageAt)
}

func TestComputeEmpty(t *testing.T) {
	s := Compute("")

	assert.Equal(t, 0, s.TotalMessages)
	assert.NotNil(t, s.Participants)
	assert.Empty(t, s.Participants)
	assert.Nil(t, s.FirstMessageAt)
	assert.Nil(t, s.LastMessageAt)
}

func TestComputeMalformedHTML(t *testing.T) {
	s := Compute(`<div class="message default"><div class="from_name">USER_1</div><div class="text">hi`)

	assert.Equal(t, 1, s.TotalMessages)
	assert.Nil(t, s.FirstMessageAt)
}

func TestNewMeta(t *testing.T) {
	text := "12.03.2024, 21:15 - USER_1: Привет"
	meta := NewMeta(text, 1_000_000)

	assert.Equal(t, int64(len(text)), meta.UploadBytes)
	assert.Equal(t, int64(1_000_000), meta.RecommendedBytes)
	assert.Equal(t, 1, meta.Stats.TotalMessages)
}
