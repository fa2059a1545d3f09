package mp4demux

var startCode = []byte{0, 0, 0, 1}

// annexBParameterSets joins parameter set NAL units (SPS/PPS, or VPS/SPS/PPS
// for HEVC) with start codes, in the order given.
func annexBParameterSets(groups ...[][]byte) []byte {
	var out []byte
	for _, nalus := range groups {
		for _, nalu := range nalus {
			out = append(out, startCode...)
			out = append(out, nalu...)
		}
	}
	return out
}

// avccToAnnexB converts 4-byte length-prefixed NAL units (avcC and hvcC
// samples) to Annex B start code framing.
func avccToAnnexB(data []byte) []byte {
	var result []byte
	offset := 0

	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if offset+naluLen > len(data) {
			break
		}

		result = append(result, startCode...)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}

	return result
}
