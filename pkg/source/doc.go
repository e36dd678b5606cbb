// Package source delivers speed samples to a measurement session from a
// GNSS receiver, a recorded file or a network feed.
//
// Overview
//
//   - Source interface:
//     Next(ctx context.Context) (dyno.Sample, error)
//     Close() error
//
//     Next blocks until the next sample arrives, the context is done or the
//     source ends. A finished stream returns io.EOF; every later call returns
//     the same error. Close releases the port, file or connection and makes
//     pending and later Next calls return ErrClosed.
//
//   - Backends (Open picks one from config.SourceConfig.Kind):
//
//   - nmea: NMEA 0183 over a serial port. RMC sentences with status A carry
//     time and speed over ground (knots); GGA sentences update altitude and
//     satellite count, which are attached to the following RMC sample.
//
//   - ubx: u-blox binary protocol over a serial port. Open sets the
//     navigation rate (CFG-RATE) and enables NAV-PVT (CFG-MSG); each
//     NAV-PVT frame with a 2D/3D fix yields one sample from its UTC time,
//     gSpeed (mm/s), hMSL (mm) and numSV.
//
//   - csv: replay of a recorded run. Columns speed,time[,alt,sats] or a
//     header naming them in any order; time is hundredths or any layout
//     timebase.Parse accepts.
//
//   - mqtt: JSON payloads on a topic (paho client, QoS 1).
//
//   - ws: JSON payloads from a WebSocket endpoint, e.g. a BLE bridge.
//
//   - JSON payload:
//     {"speed": 63.2, "time": 4531940, "alt": 312.5, "sats": 9}
//     time may be a number (hundredths) or a string; "timestamp" is
//     accepted in place of "time".
//
//   - Errors (errs.go):
//     ErrUnknownKind : Open with an unsupported kind
//     ErrNoDevice    : serial kind without a device
//     ErrBadPayload  : payload or row that does not decode
//     ErrChecksum    : NMEA or UBX checksum mismatch
//     ErrFrame       : UBX frame with an implausible length
//     ErrClosed      : Next after Close
//
// Malformed input does not end a stream: decoders skip the sentence, frame,
// row or message and count it (see Skipped). Clock readings are passed
// through a timebase.Unwrapper so a run across midnight stays monotonic.
package source
