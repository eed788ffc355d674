// Package exr reads and writes single-part scanline OpenEXR images.
//
// Назначение: достать один канал (обычно Z) как []float32 и записать синтетические файлы для тестов.
// Поддерживается: UINT/HALF/FLOAT, компрессия NONE/RLE/ZIPS/ZIP.
// Не делает: tiled, deep, multi-part, PIZ/PXR24/B44/DWA.
package exr
