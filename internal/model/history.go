package model

// SpeedHistoryBucket is one sample appended at history-interval cadence.
type SpeedHistoryBucket struct {
	TimestampUnix int64  `json:"ts"`
	DownBytes     uint64 `json:"down"`
	UpBytes       uint64 `json:"up"`
}

// HistoryRow is one aggregated row returned by history-get: a dense tuple of
// [ts, sumDown, sumUp, peakDown, peakUp] once the requested step groups one
// or more underlying buckets together.
type HistoryRow struct {
	TimestampUnix int64
	SumDownBytes  uint64
	SumUpBytes    uint64
	PeakDownBytes uint64
	PeakUpBytes   uint64
}

// StepFor computes the effective history bucket step: ceil(requested/
// interval)*interval, then widened by whole intervals while the range would
// otherwise produce more than limit buckets.
func StepFor(requested, interval int64, start, end int64, limit int64) int64 {
	if interval <= 0 {
		interval = 1
	}
	if requested <= 0 {
		requested = interval
	}
	step := ((requested + interval - 1) / interval) * interval
	if limit > 0 && step > 0 {
		span := end - start
		if span < 0 {
			span = 0
		}
		bucketCount := span/step + 1
		for bucketCount > limit && step < span+interval {
			step += interval
			bucketCount = span/step + 1
		}
	}
	return step
}

// AggregateHistory groups raw buckets (assumed sorted ascending by
// timestamp) into rows of width step, summing down/up and tracking the peak
// per-bucket value for down/up within each row.
func AggregateHistory(buckets []SpeedHistoryBucket, start, end, step int64) []HistoryRow {
	if step <= 0 {
		return nil
	}
	rows := make(map[int64]*HistoryRow)
	var order []int64
	for _, b := range buckets {
		if b.TimestampUnix < start || b.TimestampUnix > end {
			continue
		}
		rowStart := start + ((b.TimestampUnix - start) / step) * step
		row, ok := rows[rowStart]
		if !ok {
			row = &HistoryRow{TimestampUnix: rowStart}
			rows[rowStart] = row
			order = append(order, rowStart)
		}
		row.SumDownBytes += b.DownBytes
		row.SumUpBytes += b.UpBytes
		if b.DownBytes > row.PeakDownBytes {
			row.PeakDownBytes = b.DownBytes
		}
		if b.UpBytes > row.PeakUpBytes {
			row.PeakUpBytes = b.UpBytes
		}
	}
	out := make([]HistoryRow, 0, len(order))
	for _, ts := range order {
		out = append(out, *rows[ts])
	}
	// order is append-order of first sight which, since buckets arrive
	// sorted ascending, is already ascending by TimestampUnix.
	return out
}
