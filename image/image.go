package image

// Image is a contiguous firmware image.
type Image struct {
	// Address is the flash address of the first byte of Data
	Address uint32

	// Data is the image contents
	Data []byte
}

// Page is one flash page of an image.
type Page struct {
	// Address is the page-aligned flash address
	Address uint32

	// Data is exactly one page of contents
	Data []byte
}

// End returns the address one past the last byte of the image.
func (img *Image) End() uint32 {
	return img.Address + uint32(len(img.Data))
}

// Pages splits the image into size-byte pages aligned to multiples of size.
// Bytes of the first and last page that fall outside the image are 0xFF.
func (img *Image) Pages(size int) []Page {
	if size <= 0 || len(img.Data) == 0 {
		return nil
	}

	start := img.Address - img.Address%uint32(size)
	pages := make([]Page, 0, (int(img.End()-start)+size-1)/size)
	for addr := start; addr < img.End(); addr += uint32(size) {
		data := make([]byte, size)
		for i := range data {
			data[i] = fillByte
		}

		// Copy the overlap between [addr, addr+size) and the image.
		lo := maxU32(addr, img.Address)
		hi := minU32(addr+uint32(size), img.End())
		copy(data[lo-addr:hi-addr], img.Data[lo-img.Address:hi-img.Address])

		pages = append(pages, Page{Address: addr, Data: data})
	}
	return pages
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
