package decode

import "encoding/binary"

const audioWordBytes = 2

// decodeAudio implements the two-pass AUDIO segment decode: pass 1 starts at
// offset 0 and takes every channels-th sample as the right channel, pushing
// one dense per-sample anchor to AudioTime and incrementing the audio
// segment counter per sample; pass 2 starts at offset audioWordBytes and
// takes every channels-th sample as the left channel, with no counter or
// timestamp push (it mirrors the right-channel pass's timing exactly).
func decodeAudio(payload []byte, chunk *Chunk, state *State, channels int) {
	stride := audioWordBytes * channels

	for off := 0; off+audioWordBytes <= len(payload); off += stride {
		sample := int16(binary.LittleEndian.Uint16(payload[off:]))
		chunk.AudioR = append(chunk.AudioR, int32(sample))
		state.AudPackets++
		chunk.AudioTime = append(chunk.AudioTime, FromDeviceTime(state.RecentAudioTime))
	}

	for off := audioWordBytes; off+audioWordBytes <= len(payload); off += stride {
		sample := int16(binary.LittleEndian.Uint16(payload[off:]))
		chunk.AudioL = append(chunk.AudioL, int32(sample))
	}
}
