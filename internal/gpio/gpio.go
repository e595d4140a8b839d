// Package gpio provides PIR sensor reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the PIR sensor output.
type Reader interface {
	// Read returns true while the sensor reports motion.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults for a HC-SR501 style sensor on a Raspberry Pi.
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17 // BCM numbering
)

// Options configures the real reader.
type Options struct {
	Chip string
	Pin  int
	// ActiveLow inverts the line: raw 0 = motion.
	ActiveLow bool
}
