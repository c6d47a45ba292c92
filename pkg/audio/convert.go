package audio

// Normalize converts a captured frame to the target format. Channel layout is
// fixed first, then the sample rate, so stereo input is never resampled.
// Frames already in the target format are returned unchanged. Frames with an
// odd byte count (corrupt int16 PCM) come back with nil Data.
func Normalize(frame Frame, target Format) Frame {
	if len(frame.Data)%2 != 0 {
		return Frame{SampleRate: target.SampleRate, Channels: target.Channels, Timestamp: frame.Timestamp}
	}
	if frame.SampleRate == target.SampleRate && frame.Channels == target.Channels {
		return frame
	}

	pcm := frame.Data
	if frame.Channels == 2 && target.Channels == 1 {
		pcm = StereoToMono(pcm)
	} else if frame.Channels == 1 && target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}
	if frame.SampleRate != target.SampleRate {
		if target.Channels == 1 {
			pcm = ResampleMono16(pcm, frame.SampleRate, target.SampleRate)
		} else {
			// Stereo resampling is done per channel pair below the mono path;
			// the live pipeline only targets mono so this splits lazily.
			pcm = resampleInterleaved16(pcm, target.Channels, frame.SampleRate, target.SampleRate)
		}
	}

	return Frame{
		Data:       pcm,
		SampleRate: target.SampleRate,
		Channels:   target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// StereoToMono averages the L and R samples of each interleaved stereo frame.
// Arithmetic runs in int32 and the result is clamped to the int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j], out[j+1] = lo, hi
		out[j+2], out[j+3] = lo, hi
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. When the rates match the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	step := float64(srcRate) / float64(dstRate)
	for i := range dstSamples {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := int16(pcm[idx*2]) | int16(pcm[idx*2+1])<<8
		s1 := s0
		if idx+1 < srcSamples {
			s1 = int16(pcm[(idx+1)*2]) | int16(pcm[(idx+1)*2+1])<<8
		}
		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// resampleInterleaved16 resamples interleaved multi-channel int16 PCM by
// deinterleaving, resampling each channel and reinterleaving.
func resampleInterleaved16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if channels <= 1 {
		return ResampleMono16(pcm, srcRate, dstRate)
	}
	frames := len(pcm) / (2 * channels)
	planes := make([][]byte, channels)
	for c := range planes {
		plane := make([]byte, frames*2)
		for i := range frames {
			src := (i*channels + c) * 2
			plane[i*2] = pcm[src]
			plane[i*2+1] = pcm[src+1]
		}
		planes[c] = ResampleMono16(plane, srcRate, dstRate)
	}
	outFrames := len(planes[0]) / 2
	out := make([]byte, outFrames*channels*2)
	for c, plane := range planes {
		for i := 0; i < len(plane)/2 && i < outFrames; i++ {
			dst := (i*channels + c) * 2
			out[dst] = plane[i*2]
			out[dst+1] = plane[i*2+1]
		}
	}
	return out
}
