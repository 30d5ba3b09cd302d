// Package domain models earthquake event data prepared for the Nepal
// earthquake dashboard.
//
// # Data Sources
//
// Events arrive from one of three sources, all reduced to [Record] values
// before normalization:
//
//   - The USGS FDSN event web service, queried as GeoJSON with the boundary's
//     bounding box, a minimum magnitude of 3.0 and a start date of 2010-10-07.
//     Times are epoch milliseconds in UTC; depth is the third coordinate.
//   - A "seismograph" CSV export whose first five columns are Date, Time,
//     Latitude, Longitude and Magnitude. Dates are written day-first in mixed
//     layouts ("25/04/2015 06:11", "2015-04-25 06:11:26"). No depth.
//   - A "catalog" CSV export with named columns time, latitude, longitude,
//     depth and mag (and sometimes place), stored at single precision.
//
// # Normalization
//
// [Normalize] keeps records whose point lies inside the buffered boundary,
// converts the instant to the display location (Asia/Kathmandu, UTC+5:45, no
// DST), sorts ascending by time and replaces the point with explicit
// longitude/latitude fields. Records outside the boundary are dropped
// silently; an empty [Table] is a valid result.
//
// # ID Generation
//
// Event IDs are deterministic SHA-256 hashes of every stored field, so a
// snapshot reloaded from disk, or a replayed run, yields the same IDs. See
// [generateID]. Exact duplicate rows are kept; [NewTable] suffixes their IDs
// with [OccurrenceID] in time order.
package domain
