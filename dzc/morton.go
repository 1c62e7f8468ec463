/*
Package dzc packs many Deep Zoom images into the shared per-level canvases of
a Deep Zoom collection.

Members are placed on a Z-order (Morton) grid by their sequence index. At
level L every member occupies a 2^L pixel square slot, so one canvas tile of
TileSize pixels holds TileSize/2^L members along each edge.
*/
package dzc

// Morton maps a sequence index onto the Z-order grid. Bits 0, 2, 4, ... of
// n form col and bits 1, 3, 5, ... form row.
func Morton(n uint32) (row, col int) {
	for bit := uint(0); n > 0; bit, n = bit+1, n>>1 {
		if n&1 == 0 {
			continue
		}
		if bit%2 == 0 {
			col |= 1 << (bit / 2)
		} else {
			row |= 1 << (bit / 2)
		}
	}
	return row, col
}
